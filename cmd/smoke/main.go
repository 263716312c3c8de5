package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

type envelope struct {
	Success   bool            `json:"success"`
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *client) do(method, path string, body interface{}) (*envelope, int, error) {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, err
	}
	return &env, resp.StatusCode, nil
}

func prettyPrint(raw json.RawMessage) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// smoke walks the main API flow against a running server: catalog, balance,
// one generation, its status and the ledger rows it produced.
func main() {
	baseURL := flag.String("url", "http://localhost:3000/api", "API base URL")
	model := flag.String("model", "simulated", "model to generate with")
	prompt := flag.String("prompt", "a lighthouse at dusk, oil painting", "prompt")
	flag.Parse()

	token := os.Getenv("SMOKE_TOKEN")
	if token == "" {
		color.Red("SMOKE_TOKEN is required (cmd/seed prints one per user)")
		os.Exit(1)
	}

	c := &client{baseURL: *baseURL, token: token, http: &http.Client{Timeout: 10 * time.Minute}}
	failed := false

	step := func(title, method, path string, body interface{}, wantStatus int) *envelope {
		color.Yellow("\n%s", title)
		env, status, err := c.do(method, path, body)
		if err != nil {
			color.Red("Failed: %v", err)
			failed = true
			return nil
		}
		if status != wantStatus {
			color.Red("Status: %d (%s) %s", status, env.ErrorType, env.Message)
			failed = true
			return env
		}
		color.Green("Status: %d", status)
		prettyPrint(env.Data)
		return env
	}

	color.Cyan("🚀 Starting generation API smoke test against %s\n", *baseURL)

	step("1. List models", http.MethodGet, "/generation/v1/models", nil, http.StatusOK)
	step("2. Credit balance", http.MethodGet, "/credits/v1", nil, http.StatusOK)

	gen := step("3. Generate", http.MethodPost, "/generation/v1", map[string]interface{}{
		"model_id":   *model,
		"prompt":     *prompt,
		"batch_size": 1,
	}, http.StatusCreated)

	if gen != nil && gen.Success {
		var created struct {
			Id string `json:"id"`
		}
		if err := json.Unmarshal(gen.Data, &created); err == nil && created.Id != "" {
			step("4. Generation status", http.MethodGet, "/generation/v1/"+created.Id+"/status", nil, http.StatusOK)
		}
	}

	step("5. Credit history", http.MethodGet, "/credits/v1/history", nil, http.StatusOK)

	if failed {
		color.Red("\nSmoke test failed")
		os.Exit(1)
	}
	color.Green("\n✅ Smoke test passed")
}
