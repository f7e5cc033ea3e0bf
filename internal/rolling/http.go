package rolling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
)

// HTTPSource reads pages from the occurrences endpoint of a server.
type HTTPSource struct {
	baseURL    string
	familyID   int64
	token      string
	httpClient *http.Client
}

func NewHTTPSource(baseURL string, familyID int64, token string) *HTTPSource {
	return &HTTPSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		familyID: familyID,
		token:    token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type pageResponse struct {
	Occurrences []Entry `json:"occurrences"`
}

func (s *HTTPSource) Fetch(ctx context.Context, f Filter, from, to time.Time) ([]Entry, error) {
	q := url.Values{}
	q.Set("from", recurrence.FormatDate(from))
	q.Set("to", recurrence.FormatDate(to))
	if id, ok := f.MemberID.Get(); ok {
		q.Set("member", strconv.FormatInt(id, 10))
	}
	u := fmt.Sprintf("%s/api/families/%d/occurrences?%s", s.baseURL, s.familyID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch occurrences: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		if body.Error != "" {
			return nil, fmt.Errorf("fetch occurrences: status %d: %s", resp.StatusCode, body.Error)
		}
		return nil, fmt.Errorf("fetch occurrences: status %d", resp.StatusCode)
	}

	var page pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode occurrences: %w", err)
	}
	return page.Occurrences, nil
}
