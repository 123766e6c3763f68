package decision

import "net/url"

// TrackingParams holds the ad-platform/affiliate query parameters spec.md
// §4.D names explicitly.
type TrackingParams struct {
	GCLID          string
	FBCLID         string
	MSCLKID        string
	TTCLID         string
	TWCLID         string
	UTMSource      string
	UTMMedium      string
	UTMCampaign    string
	UTMTerm        string
	UTMContent     string
	Ref            string
	AffiliateID    string
	ClickID        string
	HasTracking    bool // true iff any click-id param is present
}

var clickIDParams = []string{"gclid", "fbclid", "msclkid", "ttclid", "twclid", "click_id"}

// ParseTrackingParams extracts the tracking parameters from a request URL's
// query string. Presence of any click-id parameter is an affirmative
// "real ad click" signal used as an L5 tiebreaker.
func ParseTrackingParams(rawURL string) TrackingParams {
	var tp TrackingParams

	u, err := url.Parse(rawURL)
	if err != nil {
		return tp
	}
	q := u.Query()

	tp.GCLID = q.Get("gclid")
	tp.FBCLID = q.Get("fbclid")
	tp.MSCLKID = q.Get("msclkid")
	tp.TTCLID = q.Get("ttclid")
	tp.TWCLID = q.Get("twclid")
	tp.UTMSource = q.Get("utm_source")
	tp.UTMMedium = q.Get("utm_medium")
	tp.UTMCampaign = q.Get("utm_campaign")
	tp.UTMTerm = q.Get("utm_term")
	tp.UTMContent = q.Get("utm_content")
	tp.Ref = q.Get("ref")
	tp.AffiliateID = q.Get("affiliate_id")
	tp.ClickID = q.Get("click_id")

	for _, p := range clickIDParams {
		if q.Get(p) != "" {
			tp.HasTracking = true
			break
		}
	}
	return tp
}
