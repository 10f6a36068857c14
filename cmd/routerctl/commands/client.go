package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"
)

var (
	apiURL     string
	outputJSON bool
	verbose    bool
)

// SetAPIURL sets the router base URL for remote commands
func SetAPIURL(url string) {
	apiURL = strings.TrimRight(url, "/")
}

// SetOutputJSON sets the output format preference
func SetOutputJSON(json bool) {
	outputJSON = json
}

// SetVerbose sets verbose output
func SetVerbose(v bool) {
	verbose = v
}

// HTTPClient is used for every call to the router. Completions in live mode
// can take a while, so the timeout is generous.
var HTTPClient = &http.Client{
	Timeout: 120 * time.Second,
}

// APIRequest makes a request to the router and decodes a JSON response into
// out. Non-2xx responses are returned as errors carrying the server message.
func APIRequest(method, endpoint string, body, out interface{}, stderr io.Writer) error {
	if apiURL == "" {
		return fmt.Errorf("router URL required (--api-url or ROUTER_URL)")
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, apiURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if verbose {
		fmt.Fprintf(stderr, "Making %s request to: %s\n", method, apiURL+endpoint)
	}

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("router returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("router returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// OutputTable outputs data in table format
func OutputTable(w io.Writer, headers []string, rows [][]string) {
	if outputJSON {
		jsonRows := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			jsonRow := make(map[string]string)
			for i, cell := range row {
				if i < len(headers) {
					jsonRow[headers[i]] = cell
				}
			}
			jsonRows = append(jsonRows, jsonRow)
		}
		OutputJSON(w, jsonRows)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))

	separator := make([]string, len(headers))
	for i := range separator {
		separator[i] = "---"
	}
	_, _ = fmt.Fprintln(tw, strings.Join(separator, "\t"))

	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	_ = tw.Flush()
}

// OutputJSON outputs data in JSON format
func OutputJSON(w io.Writer, data interface{}) {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		fmt.Fprintf(w, "Error encoding JSON: %v\n", err)
	}
}
