package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// BusyInterval is one externally-busy block on a member's calendar.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CalendarEventRequest describes the event created for a booked interview.
type CalendarEventRequest struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
	Timezone    string
}

// CalendarEventInfo is the provider's handle on a created event.
type CalendarEventInfo struct {
	EventID  string
	HTMLLink string
	MeetLink string
}

// CalendarProvider is the external calendar boundary. Tokens are opaque to
// the core; encrypted-token handling and the OAuth flow live outside it.
// Callers treat every method as best-effort.
type CalendarProvider interface {
	GetFreeBusy(ctx context.Context, token string, timeMin, timeMax time.Time) ([]BusyInterval, error)
	CreateEvent(ctx context.Context, token string, req CalendarEventRequest) (*CalendarEventInfo, error)
	CancelEvent(ctx context.Context, token, eventID string) error
}

// GoogleCalendar implements CalendarProvider against the Google Calendar
// API. Tokens are the JSON form of oauth2.Token stored on the team member.
type GoogleCalendar struct {
	config *oauth2.Config
}

// NewGoogleCalendar builds the provider. Returns nil when the OAuth client
// is not configured, which disables external busy data and event creation.
func NewGoogleCalendar(clientID, clientSecret, redirectURL string) *GoogleCalendar {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &GoogleCalendar{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				calendar.CalendarEventsScope,
				calendar.CalendarReadonlyScope,
			},
			Endpoint: google.Endpoint,
		},
	}
}

// AuthCodeURL starts the connect flow for one team member; the member id
// rides in the state parameter.
func (g *GoogleCalendar) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a storable token.
func (g *GoogleCalendar) Exchange(ctx context.Context, code string) (string, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (g *GoogleCalendar) service(ctx context.Context, token string) (*calendar.Service, error) {
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(token), &tok); err != nil {
		return nil, fmt.Errorf("invalid calendar token: %w", err)
	}
	client := g.config.Client(ctx, &tok)
	return calendar.NewService(ctx, option.WithHTTPClient(client))
}

// GetFreeBusy queries the primary calendar's busy blocks.
func (g *GoogleCalendar) GetFreeBusy(ctx context.Context, token string, timeMin, timeMax time.Time) ([]BusyInterval, error) {
	srv, err := g.service(ctx, token)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: "primary"}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("free/busy query: %w", err)
	}

	var out []BusyInterval
	for _, cal := range resp.Calendars {
		for _, b := range cal.Busy {
			start, err := time.Parse(time.RFC3339, b.Start)
			if err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, b.End)
			if err != nil {
				continue
			}
			out = append(out, BusyInterval{Start: start, End: end})
		}
	}
	return out, nil
}

// CreateEvent inserts the interview on the member's primary calendar with a
// Meet conference attached.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, token string, req CalendarEventRequest) (*CalendarEventInfo, error) {
	srv, err := g.service(ctx, token)
	if err != nil {
		return nil, err
	}

	event := &calendar.Event{
		Summary:     req.Title,
		Description: req.Description,
		Start: &calendar.EventDateTime{
			DateTime: req.Start.Format(time.RFC3339),
			TimeZone: req.Timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: req.End.Format(time.RFC3339),
			TimeZone: req.Timezone,
		},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: fmt.Sprintf("interview-%d", req.Start.Unix()),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
	}
	for _, email := range req.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	created, err := srv.Events.Insert("primary", event).
		ConferenceDataVersion(1).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("create calendar event: %w", err)
	}

	info := &CalendarEventInfo{EventID: created.Id, HTMLLink: created.HtmlLink}
	if created.ConferenceData != nil {
		for _, ep := range created.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				info.MeetLink = ep.Uri
				break
			}
		}
	}
	return info, nil
}

// CancelEvent removes a previously created event.
func (g *GoogleCalendar) CancelEvent(ctx context.Context, token, eventID string) error {
	srv, err := g.service(ctx, token)
	if err != nil {
		return err
	}
	if err := srv.Events.Delete("primary", eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("cancel calendar event: %w", err)
	}
	return nil
}
