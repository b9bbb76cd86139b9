package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// call sends a JSON request and decodes a JSON response into out when out is non-nil.
func (r *Runner) call(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, nil
}

// account registers a fresh user and logs in, returning the bearer token.
func (r *Runner) account(ctx context.Context, role, email string) (string, error) {
	const password = "bench-password"
	status, err := r.call(ctx, http.MethodPost, "/api/auth/register", "", map[string]string{
		"full_name": "bench " + role,
		"email":     email,
		"password":  password,
		"role":      role,
	}, nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("register %s: status %d", email, status)
	}
	var login struct {
		Token string `json:"token"`
	}
	status, err = r.call(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{
		"login":    email,
		"password": password,
	}, &login)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || login.Token == "" {
		return "", fmt.Errorf("login %s: status %d", email, status)
	}
	return login.Token, nil
}
