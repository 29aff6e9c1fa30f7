package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aurorabook/concierge/internal/transient"
)

// googleCalendarClient is a thin REST client over the calendar provider's
// freebusy/events surface, grounded on the teacher's typed-client.go +
// adapter.go split (formerly internal/boulevard, internal/vagaro — both
// deleted once their client/adapter idiom had been captured here; see
// DESIGN.md "C9"). One retryable-error retry, 5–10s timeout (spec.md §5).
type googleCalendarClient struct {
	httpClient *http.Client
	baseURL    string
	calendarID string
	apiKey     string
}

func newGoogleCalendarClient(baseURL, calendarID, apiKey string, timeout time.Duration) *googleCalendarClient {
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	return &googleCalendarClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		calendarID: calendarID,
		apiKey:     apiKey,
	}
}

type gcalEvent struct {
	ID          string       `json:"id"`
	Summary     string       `json:"summary"`
	Description string       `json:"description"`
	Start       gcalDateTime `json:"start"`
	End         gcalDateTime `json:"end"`
}

type gcalDateTime struct {
	DateTime string `json:"dateTime"`
}

type freeBusySlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (c *googleCalendarClient) do(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("booking: encode request: %w", err)
		}
	}

	payload := buf.Bytes()

	doOnce := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("booking: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return fmt.Errorf("booking: calendar provider returned status %d", resp.StatusCode)
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("booking: decode response: %w", err)
			}
		}
		return nil
	}

	err := doOnce()
	if err != nil && transient.Is(err) {
		err = doOnce()
	}
	return err
}

func (c *googleCalendarClient) freeBusy(ctx context.Context, date time.Time, window Window) ([]freeBusySlot, error) {
	var out struct {
		Slots []freeBusySlot `json:"slots"`
	}
	req := map[string]any{
		"calendarId": c.calendarID,
		"date":       date.Format("2006-01-02"),
		"startHour":  window.StartHour,
		"endHour":    window.EndHour,
	}
	if err := c.do(ctx, http.MethodPost, "/freeBusy", req, &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

func (c *googleCalendarClient) insertEvent(ctx context.Context, startISO, endISO, summary, description string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	req := map[string]any{
		"calendarId":  c.calendarID,
		"summary":     summary,
		"description": description,
		"start":       gcalDateTime{DateTime: startISO},
		"end":         gcalDateTime{DateTime: endISO},
	}
	if err := c.do(ctx, http.MethodPost, "/events", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *googleCalendarClient) listUpcomingEvents(ctx context.Context, days int) ([]gcalEvent, error) {
	var out struct {
		Events []gcalEvent `json:"events"`
	}
	path := fmt.Sprintf("/events?calendarId=%s&days=%d", c.calendarID, days)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *googleCalendarClient) deleteEvent(ctx context.Context, eventID string) error {
	return c.do(ctx, http.MethodDelete, "/events/"+eventID, nil, nil)
}
