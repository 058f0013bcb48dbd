package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/consogab/server/internal/models"
)

// HTTPAPI talks to the messaging API with exponential-backoff retry on
// transport errors and 5xx responses.
type HTTPAPI struct {
	http       *http.Client
	base       string
	token      string
	maxElapsed time.Duration
}

type HTTPConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxElapsed time.Duration
}

func NewHTTPAPI(cfg HTTPConfig) *HTTPAPI {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxElapsed == 0 {
		cfg.MaxElapsed = 15 * time.Second
	}
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    16,
		IdleConnTimeout: 90 * time.Second,
	}
	return &HTTPAPI{
		http:       &http.Client{Transport: tr, Timeout: cfg.Timeout},
		base:       cfg.BaseURL,
		token:      cfg.Token,
		maxElapsed: cfg.MaxElapsed,
	}
}

func (a *HTTPAPI) Conversations(ctx context.Context) ([]*models.Conversation, error) {
	var out struct {
		Conversations []*models.Conversation `json:"conversations"`
	}
	if err := a.do(ctx, http.MethodGet, "/v1/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (a *HTTPAPI) Messages(ctx context.Context, conversationID string, page, limit int) ([]*models.Message, error) {
	path := "/v1/conversations/" + url.PathEscape(conversationID) + "/messages" +
		"?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
	var out struct {
		Messages []*models.Message `json:"messages"`
	}
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (a *HTTPAPI) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	var out models.Message
	if err := a.do(ctx, http.MethodPost, "/v1/messages", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HTTPAPI) MarkRead(ctx context.Context, conversationID string) error {
	path := "/v1/conversations/" + url.PathEscape(conversationID) + "/read"
	return a.do(ctx, http.MethodPost, path, nil, nil)
}

func (a *HTTPAPI) Profile(ctx context.Context, id string) (*models.Profile, error) {
	var out models.Profile
	if err := a.do(ctx, http.MethodGet, "/v1/profiles/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HTTPAPI) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, a.base+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Bearer "+a.token)

		resp, err := a.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("api status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			var apiErr struct {
				Error string `json:"error"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&apiErr)
			return backoff.Permanent(fmt.Errorf("api status %d: %s", resp.StatusCode, apiErr.Error))
		}
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = a.maxElapsed
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
