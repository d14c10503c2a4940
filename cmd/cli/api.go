package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// app holds what every dealctl command needs to reach the API server.
type app struct {
	client    *http.Client
	baseURL   string
	tokenPath string
	out       io.Writer
}

// apiError carries the server's {"error": ...} message and status.
type apiError struct {
	Method string
	URL    string
	Status int
	Msg    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Status, e.Msg)
}

func (a *app) endpoint(path string, qv url.Values) string {
	u := strings.TrimRight(a.baseURL, "/") + path
	if len(qv) > 0 {
		u += "?" + qv.Encode()
	}
	return u
}

// call sends payload as JSON and decodes the reply into out. With authed set
// the saved operator token is attached.
func (a *app) call(ctx context.Context, method, path string, qv url.Values, authed bool, payload, out any) error {
	token := ""
	if authed {
		var err error
		if token, err = a.token(); err != nil {
			return err
		}
	}
	return doJSON(ctx, a.client, method, a.endpoint(path, qv), token, payload, out)
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return newAPIError(method, endpoint, resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func newAPIError(method, endpoint string, status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &apiError{Method: method, URL: endpoint, Status: status, Msg: msg}
}

// download streams a non-JSON response (the insights workbook) to path.
func (a *app) download(ctx context.Context, path string, qv url.Values, dest string) error {
	endpoint := a.endpoint(path, qv)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return newAPIError(http.MethodGet, endpoint, resp.StatusCode, data)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

func (a *app) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

func setIf(qv url.Values, key, v string) {
	if v != "" {
		qv.Set(key, v)
	}
}

func setIfPositive(qv url.Values, key string, v int) {
	if v > 0 {
		qv.Set(key, strconv.Itoa(v))
	}
}

// Token file

type tokenData struct {
	Token string `json:"token"`
}

var errNoToken = errors.New("not logged in: run dealctl auth login")

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.dealflow-token.json"
	}
	return filepath.Join(home, ".dealflow", "token.json")
}

func (a *app) token() (string, error) {
	tok, err := readToken(a.tokenPath)
	if errors.Is(err, os.ErrNotExist) || (err == nil && tok == "") {
		return "", errNoToken
	}
	return tok, err
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(tokenData{Token: token})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", fmt.Errorf("token file %s: %w", path, err)
	}
	return strings.TrimSpace(td.Token), nil
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
