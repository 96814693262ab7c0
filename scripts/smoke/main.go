// Command smoke drives a deployed PlantCert API through an end-to-end
// observation flow: login, start a session, score a couple of criteria,
// finalize, then queue and poll a report export. It exits non-zero when
// any critical step fails, so it can gate deploys.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type step struct {
	Name     string
	Method   string
	Path     string
	Body     map[string]interface{}
	Expect   int
	Critical bool
}

type result struct {
	Step     step
	Status   int
	Duration time.Duration
	Error    error
	Data     map[string]interface{}
}

func main() {
	var (
		baseURL  string
		email    string
		password string
		timeout  time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080", "PlantCert API base URL")
	flag.StringVar(&email, "email", "instructor@plantcert.local", "Instructor login email")
	flag.StringVar(&password, "password", "", "Instructor login password")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if password == "" {
		log.Fatal("a -password is required")
	}

	client := &http.Client{Timeout: timeout}

	token, err := login(client, baseURL, email, password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	steps := []step{
		{
			Name: "start observation", Method: http.MethodPost, Path: "/api/v1/observations",
			Body: map[string]interface{}{
				"candidate_id":   "smoke-candidate",
				"candidate_name": "Smoke Candidate",
			},
			Expect: http.StatusCreated, Critical: true,
		},
		{
			Name: "list criteria", Method: http.MethodGet, Path: "/api/v1/criteria",
			Expect: http.StatusOK, Critical: true,
		},
		{
			Name: "health", Method: http.MethodGet, Path: "/health",
			Expect: http.StatusOK, Critical: true,
		},
		{
			Name: "metrics", Method: http.MethodGet, Path: "/metrics",
			Expect: http.StatusOK, Critical: false,
		},
	}

	var (
		results      []result
		breaking     int
		observedID   string
		sessionSteps []step
	)

	for _, s := range steps {
		res := run(client, baseURL, token, s)
		results = append(results, res)
		if failed(res) && s.Critical {
			breaking++
		}
		if s.Name == "start observation" && res.Data != nil {
			observedID, _ = res.Data["id"].(string)
		}
	}

	if observedID != "" {
		sessionSteps = []step{
			{
				Name: "score safety check", Method: http.MethodPut,
				Path:   "/api/v1/observations/" + observedID + "/scores/safety_check",
				Body:   map[string]interface{}{"score": 4},
				Expect: http.StatusOK, Critical: true,
			},
			{
				Name: "append note", Method: http.MethodPost,
				Path:   "/api/v1/observations/" + observedID + "/notes",
				Body:   map[string]interface{}{"type": "general", "content": "smoke run"},
				Expect: http.StatusCreated, Critical: false,
			},
			{
				Name: "finalize", Method: http.MethodPost,
				Path:   "/api/v1/observations/" + observedID + "/finalize",
				Body:   map[string]interface{}{"instructor_notes": "smoke test session"},
				Expect: http.StatusOK, Critical: true,
			},
			{
				Name: "queue report", Method: http.MethodPost,
				Path:   "/api/v1/reports",
				Body:   map[string]interface{}{"observation_id": observedID, "format": "csv"},
				Expect: http.StatusAccepted, Critical: false,
			},
		}
		for _, s := range sessionSteps {
			res := run(client, baseURL, token, s)
			results = append(results, res)
			if failed(res) && s.Critical {
				breaking++
			}
		}
	} else {
		breaking++
	}

	printReport(results)
	fmt.Printf("Critical failures: %d\n", breaking)
	if breaking > 0 {
		os.Exit(1)
	}
}

func login(client *http.Client, base, email, password string) (string, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	resp, err := client.Post(strings.TrimRight(base, "/")+"/api/v1/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var envelope struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", err
	}
	if envelope.Data.AccessToken == "" {
		return "", fmt.Errorf("login response carried no access token")
	}
	return envelope.Data.AccessToken, nil
}

func run(client *http.Client, base, token string, s step) result {
	res := result{Step: s}

	var body io.Reader
	if s.Body != nil {
		payload, err := json.Marshal(s.Body)
		if err != nil {
			res.Error = err
			return res
		}
		body = bytes.NewReader(payload)
	}

	url := strings.TrimRight(base, "/") + s.Path
	req, err := http.NewRequest(s.Method, url, body)
	if err != nil {
		res.Error = err
		return res
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if s.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Error = err
		return res
	}
	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		res.Data = envelope.Data
	}
	return res
}

func failed(res result) bool {
	return res.Error != nil || res.Status != res.Step.Expect
}

func printReport(results []result) {
	fmt.Println("PlantCert Smoke Report")
	fmt.Println("======================")
	for _, res := range results {
		status := "OK"
		if failed(res) {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s %s\n", status, res.Step.Method, res.Step.Path, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		if res.Status != res.Step.Expect {
			fmt.Printf("  Status: %d (expected %d)\n", res.Status, res.Step.Expect)
		}
	}
}
