// Package models holds the entities persisted by the Store: the two raw
// event tables, the session table, and the five rollup tables described in
// the data model.
package models

import "time"

// ProfileView is one load of a profile page.
type ProfileView struct {
	ID         int64     `json:"id"`
	ProfileID  string    `json:"profileId"`
	SessionID  string    `json:"sessionId,omitempty"`
	VisitorIP  string    `json:"-"`
	UserAgent  string    `json:"-"`
	Referrer   string    `json:"referrer,omitempty"`
	Country    string    `json:"country,omitempty"`
	Region     string    `json:"region,omitempty"`
	City       string    `json:"city,omitempty"`
	DeviceType string    `json:"deviceType,omitempty"`
	Browser    string    `json:"browser,omitempty"`
	OS         string    `json:"os,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// LinkClick is a user action on one link of a profile page.
type LinkClick struct {
	ID         int64     `json:"id"`
	ProfileID  string    `json:"profileId"`
	LinkIndex  int       `json:"linkIndex"`
	LinkTitle  string    `json:"linkTitle,omitempty"`
	LinkURL    string    `json:"linkUrl,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	VisitorIP  string    `json:"-"`
	UserAgent  string    `json:"-"`
	Referrer   string    `json:"referrer,omitempty"`
	Country    string    `json:"country,omitempty"`
	Region     string    `json:"region,omitempty"`
	City       string    `json:"city,omitempty"`
	DeviceType string    `json:"deviceType,omitempty"`
	Browser    string    `json:"browser,omitempty"`
	OS         string    `json:"os,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Session is a contiguous activity span by a single visitor.
type Session struct {
	SessionID  string     `json:"sessionId"`
	ProfileID  string     `json:"profileId"`
	VisitorIP  string     `json:"-"`
	UserAgent  string     `json:"-"`
	Country    string     `json:"country,omitempty"`
	Region     string     `json:"region,omitempty"`
	City       string     `json:"city,omitempty"`
	DeviceType string     `json:"deviceType,omitempty"`
	Browser    string     `json:"browser,omitempty"`
	OS         string     `json:"os,omitempty"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Duration   *int64     `json:"duration,omitempty"` // seconds
	PageViews  int        `json:"pageViews"`
	LinkClicks int        `json:"linkClicks"`
}

// DailyStats is the per-profile, per-day top-level rollup.
type DailyStats struct {
	ProfileID    string   `json:"profileId"`
	Date         string   `json:"date"` // YYYY-MM-DD, midnight UTC
	Views        int64    `json:"views"`
	UniqueViews  int64    `json:"uniqueViews"`
	Clicks       int64    `json:"clicks"`
	UniqueClicks int64    `json:"uniqueClicks"`
	Sessions     int64    `json:"sessions"`
	AvgDuration  *float64 `json:"avgDuration,omitempty"`
	BounceRate   float64  `json:"bounceRate"`
}

// LinkStats is the per-link, per-day rollup.
type LinkStats struct {
	ProfileID    string  `json:"profileId"`
	LinkIndex    int     `json:"linkIndex"`
	Date         string  `json:"date"`
	LinkTitle    string  `json:"linkTitle"`
	LinkURL      string  `json:"linkUrl"`
	Clicks       int64   `json:"clicks"`
	UniqueClicks int64   `json:"uniqueClicks"`
	CTR          float64 `json:"ctr"`
}

// GeoStats is the per-profile, per-location, per-day rollup.
type GeoStats struct {
	ProfileID string `json:"profileId"`
	Country   string `json:"country"`
	City      string `json:"city"`
	Region    string `json:"region,omitempty"`
	Date      string `json:"date"`
	Views     int64  `json:"views"`
	Clicks    int64  `json:"clicks"`
}

// DeviceStats is the per-profile, per-device-shape, per-day rollup.
type DeviceStats struct {
	ProfileID  string `json:"profileId"`
	DeviceType string `json:"deviceType"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	Date       string `json:"date"`
	Views      int64  `json:"views"`
	Clicks     int64  `json:"clicks"`
}

// ReferrerType classifies a ReferrerStats row.
type ReferrerType string

const (
	ReferrerSearch ReferrerType = "search"
	ReferrerSocial ReferrerType = "social"
	ReferrerDirect ReferrerType = "direct"
	ReferrerOther  ReferrerType = "other"
)

// ReferrerStats is the per-profile, per-referrer, per-day rollup.
type ReferrerStats struct {
	ProfileID    string       `json:"profileId"`
	Referrer     string       `json:"referrer"`
	ReferrerType ReferrerType `json:"referrerType"`
	Date         string       `json:"date"`
	Views        int64        `json:"views"`
	Clicks       int64        `json:"clicks"`
}

// AnalyticsCache is a memoized, rendered AnalyticsReport.
type AnalyticsCache struct {
	Key       string    `json:"key"`
	Payload   []byte    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RealtimeEvent is a durable bus row backing at-least-once realtime fan-out.
type RealtimeEvent struct {
	ID        int64     `json:"id"`
	ProfileID string    `json:"profileId"`
	Kind      string    `json:"kind"` // "view" | "click"
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	Processed bool      `json:"processed"`
}

// Period is the granularity timeSeriesData is bucketed into.
type Period string

const (
	PeriodHour  Period = "hour"
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// TimeRange bounds a query over raw/rolled-up data.
type TimeRange struct {
	Start  time.Time
	End    time.Time
	Period Period
}

// TimeSeriesPoint is one bucket of AnalyticsReport.TimeSeriesData.
type TimeSeriesPoint struct {
	Bucket string `json:"bucket"`
	Views  int64  `json:"views"`
	Clicks int64  `json:"clicks"`
}

// GeoPoint is one row of AnalyticsReport.GeographicData.
type GeoPoint struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city"`
	Views   int64  `json:"views"`
	Clicks  int64  `json:"clicks"`
}

// DevicePoint is one row of AnalyticsReport.DeviceData.
type DevicePoint struct {
	DeviceType string `json:"deviceType"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	Views      int64  `json:"views"`
	Clicks     int64  `json:"clicks"`
}

// ReferrerPoint is one row of AnalyticsReport.ReferrerData.
type ReferrerPoint struct {
	Referrer     string       `json:"referrer"` // hostname, presentation form
	ReferrerType ReferrerType `json:"referrerType"`
	Views        int64        `json:"views"`
	Clicks       int64        `json:"clicks"`
}

// LinkPerformance is one row of AnalyticsReport.LinkPerformance.
type LinkPerformance struct {
	LinkIndex    int     `json:"linkIndex"`
	LinkTitle    string  `json:"linkTitle"`
	LinkURL      string  `json:"linkUrl"`
	Clicks       int64   `json:"clicks"`
	UniqueClicks int64   `json:"uniqueClicks"`
	CTR          float64 `json:"ctr"`
}

// AnalyticsReport is the composed, cacheable response of getAnalytics.
type AnalyticsReport struct {
	ProfileID            string            `json:"profileId"`
	ProfileViews         int64             `json:"profileViews"`
	UniqueViews          int64             `json:"uniqueViews"`
	TotalClicks          int64             `json:"totalClicks"`
	UniqueClicks         int64             `json:"uniqueClicks"`
	TotalLinks           int               `json:"totalLinks"`
	AverageClicksPerLink float64           `json:"averageClicksPerLink"`
	TopLink              *LinkPerformance  `json:"topLink,omitempty"`
	TimeSeriesData       []TimeSeriesPoint `json:"timeSeriesData"`
	GeographicData       []GeoPoint        `json:"geographicData"`
	DeviceData           []DevicePoint     `json:"deviceData"`
	ReferrerData         []ReferrerPoint   `json:"referrerData"`
	LinkPerformance      []LinkPerformance `json:"linkPerformance"`
}

// RealTimeAnalytics is the live tuple served by getRealTimeAnalytics.
type RealTimeAnalytics struct {
	ActiveUsers  int64 `json:"activeUsers"`
	RecentViews  int64 `json:"recentViews"`
	RecentClicks int64 `json:"recentClicks"`
}

// Profile is the subset of the on-chain profile object this service reads.
type Profile struct {
	ProfileID    string   `json:"profileId"`
	ViewCount    int64    `json:"viewCount"`
	Links        []string `json:"links"`
	Verified     bool     `json:"verified"`
	Owner        string   `json:"owner"`
	WalrusSiteID string   `json:"walrusSiteId,omitempty"`
}
