package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client implements Service against a PostgREST-style REST backend.
//
// Upserts POST with `Prefer: resolution=merge-duplicates` and an
// `on_conflict` natural-key column list, which is what makes redelivery
// safe. All requests carry the anon API key plus the user's bearer token;
// row-level security on the backend scopes every query to the owner.
type Client struct {
	baseURL string
	apiKey  string
	token   func(ctx context.Context) (string, error)
	http    *http.Client
}

// NewClient creates a REST client.
//
// token supplies the per-request bearer token (it is called on every
// request so refreshed sessions are picked up); nil means the API key
// alone is sent. The HTTP client timeout is the per-call network timeout
// the sync engine relies on — a hung request surfaces as a handler error
// after 15 seconds rather than stalling the pass.
func NewClient(baseURL, apiKey string, token func(ctx context.Context) (string, error)) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) UpsertWaterLog(ctx context.Context, log WaterLog) error {
	return c.upsert(ctx, "water_logs", "owner_id,date", log)
}

func (c *Client) UpsertStepLog(ctx context.Context, log StepLog) error {
	return c.upsert(ctx, "step_logs", "owner_id,date", log)
}

func (c *Client) UpsertMealLog(ctx context.Context, meal MealLog) error {
	return c.upsert(ctx, "meal_logs", "owner_id,meal_id", meal)
}

func (c *Client) DeleteMealLog(ctx context.Context, ownerID, mealID string) error {
	query := url.Values{}
	query.Set("owner_id", "eq."+ownerID)
	query.Set("meal_id", "eq."+mealID)
	return c.do(ctx, http.MethodDelete, "meal_logs", query, nil, nil, nil)
}

func (c *Client) UpsertSupplementLog(ctx context.Context, log SupplementLog) error {
	return c.upsert(ctx, "supplement_logs", "owner_id,supplement_id,date", log)
}

func (c *Client) CreateWorkoutSession(ctx context.Context, session WorkoutSession) (string, error) {
	session.ID = "" // server assigns
	var created []WorkoutSession
	headers := map[string]string{"Prefer": "return=representation"}
	if err := c.do(ctx, http.MethodPost, "workout_sessions", nil, headers, session, &created); err != nil {
		return "", err
	}
	if len(created) == 0 || created[0].ID == "" {
		return "", fmt.Errorf("create workout_session returned no id")
	}
	return created[0].ID, nil
}

func (c *Client) UpdateWorkoutSession(ctx context.Context, session WorkoutSession) error {
	query := url.Values{}
	query.Set("id", "eq."+session.ID)
	return c.do(ctx, http.MethodPatch, "workout_sessions", query, nil, session, nil)
}

func (c *Client) CreateWorkoutSet(ctx context.Context, set WorkoutSet) error {
	return c.do(ctx, http.MethodPost, "workout_sets", nil, nil, set, nil)
}

func (c *Client) FetchProgram(ctx context.Context, profileID string) (*Program, error) {
	query := url.Values{}
	query.Set("profile_id", "eq."+profileID)
	query.Set("select", "id,name,workouts(*)")

	var programs []Program
	if err := c.do(ctx, http.MethodGet, "programs", query, nil, nil, &programs); err != nil {
		return nil, err
	}
	if len(programs) == 0 {
		return nil, ErrNotFound
	}
	return &programs[0], nil
}

func (c *Client) FetchSetHistory(ctx context.Context, ownerID, workoutID string) ([]WorkoutSet, error) {
	query := url.Values{}
	query.Set("owner_id", "eq."+ownerID)
	query.Set("workout_id", "eq."+workoutID)
	query.Set("order", "set_number.asc")

	var sets []WorkoutSet
	if err := c.do(ctx, http.MethodGet, "workout_sets", query, nil, nil, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

func (c *Client) FetchNutritionPlan(ctx context.Context, profileID string) (*NutritionPlan, error) {
	query := url.Values{}
	query.Set("profile_id", "eq."+profileID)

	var plans []NutritionPlan
	if err := c.do(ctx, http.MethodGet, "nutrition_plans", query, nil, nil, &plans); err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, ErrNotFound
	}
	return &plans[0], nil
}

func (c *Client) FetchMeals(ctx context.Context, ownerID, date string) ([]MealLog, error) {
	query := url.Values{}
	query.Set("owner_id", "eq."+ownerID)
	query.Set("date", "eq."+date)

	var meals []MealLog
	if err := c.do(ctx, http.MethodGet, "meal_logs", query, nil, nil, &meals); err != nil {
		return nil, err
	}
	return meals, nil
}

func (c *Client) FetchSupplements(ctx context.Context, ownerID, date string) ([]SupplementLog, error) {
	query := url.Values{}
	query.Set("owner_id", "eq."+ownerID)
	query.Set("date", "eq."+date)

	var logs []SupplementLog
	if err := c.do(ctx, http.MethodGet, "supplement_logs", query, nil, nil, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *Client) FetchWaterLog(ctx context.Context, ownerID, date string) (*WaterLog, error) {
	query := url.Values{}
	query.Set("owner_id", "eq."+ownerID)
	query.Set("date", "eq."+date)

	var logs []WaterLog
	if err := c.do(ctx, http.MethodGet, "water_logs", query, nil, nil, &logs); err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, ErrNotFound
	}
	return &logs[0], nil
}

func (c *Client) FetchStepLog(ctx context.Context, ownerID, date string) (*StepLog, error) {
	query := url.Values{}
	query.Set("owner_id", "eq."+ownerID)
	query.Set("date", "eq."+date)

	var logs []StepLog
	if err := c.do(ctx, http.MethodGet, "step_logs", query, nil, nil, &logs); err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, ErrNotFound
	}
	return &logs[0], nil
}

func (c *Client) FetchWeeklySteps(ctx context.Context, ownerID string) (*WeeklySteps, error) {
	weekAgo := time.Now().AddDate(0, 0, -6).Format("2006-01-02")
	query := url.Values{}
	query.Set("owner_id", "eq."+ownerID)
	query.Set("date", "gte."+weekAgo)
	query.Set("order", "date.asc")

	var days []StepLog
	if err := c.do(ctx, http.MethodGet, "step_logs", query, nil, nil, &days); err != nil {
		return nil, err
	}

	weekly := &WeeklySteps{Days: days}
	for _, d := range days {
		weekly.Total += d.Steps
	}
	return weekly, nil
}

func (c *Client) FetchDashboard(ctx context.Context, ownerID string) (*DashboardCounters, error) {
	query := url.Values{}
	query.Set("owner_id", "eq."+ownerID)

	var counters []DashboardCounters
	if err := c.do(ctx, http.MethodGet, "dashboard_counters", query, nil, nil, &counters); err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		return nil, ErrNotFound
	}
	return &counters[0], nil
}

// upsert POSTs a row with merge-duplicates resolution on the given
// natural-key columns.
func (c *Client) upsert(ctx context.Context, table, conflictCols string, row any) error {
	query := url.Values{}
	query.Set("on_conflict", conflictCols)
	headers := map[string]string{"Prefer": "resolution=merge-duplicates"}
	return c.do(ctx, http.MethodPost, table, query, headers, row, nil)
}

// do performs one REST call. A non-2xx status becomes an error carrying
// the response body, which is what the sync engine records against the
// failing operation.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, headers map[string]string, body, dst any) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get auth token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, table, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d: %s", method, table, resp.StatusCode, truncate(respBody, 200))
	}

	if dst != nil {
		if err := json.Unmarshal(respBody, dst); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", table, err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
