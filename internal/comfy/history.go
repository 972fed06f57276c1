package comfy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Artifact types reported by the server.
const (
	ArtifactTemp   = "temp"
	ArtifactOutput = "output"
	ArtifactInput  = "input"
)

// Image is a single artifact produced by a node.
type Image struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// ArtifactPath reconstructs the display path: subfolder/filename, or just
// the filename when there is no subfolder.
func ArtifactPath(img Image) string {
	if img.Subfolder == "" {
		return img.Filename
	}
	return path.Join(img.Subfolder, img.Filename)
}

// NodeOutput is the output block of one executed node.
type NodeOutput struct {
	Images []Image `json:"images"`
}

// HistoryStatus mirrors the status block of a history record.
type HistoryStatus struct {
	StatusStr string `json:"status_str"`
	Completed bool   `json:"completed"`
}

// HistoryRecord is a finished job.
type HistoryRecord struct {
	PromptID string                `json:"prompt_id"`
	Number   int64                 `json:"number"`
	ClientID string                `json:"client_id,omitempty"`
	Graph    json.RawMessage       `json:"graph,omitempty"`
	Outputs  map[string]NodeOutput `json:"outputs"`
	Status   HistoryStatus         `json:"status"`
}

type historyWire struct {
	Prompt  []json.RawMessage     `json:"prompt"`
	Outputs map[string]NodeOutput `json:"outputs"`
	Status  HistoryStatus         `json:"status"`
}

// UnmarshalJSON decodes the server form, whose prompt member is the array
// [number, prompt_id, graph, extra_data, output_nodes].
func (r *HistoryRecord) UnmarshalJSON(data []byte) error {
	var wire historyWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("history record: %w", err)
	}
	rec := HistoryRecord{Outputs: wire.Outputs, Status: wire.Status}
	if len(wire.Prompt) > 0 {
		var number json.Number
		if err := json.Unmarshal(wire.Prompt[0], &number); err != nil {
			return fmt.Errorf("history record number: %w", err)
		}
		n, err := number.Int64()
		if err != nil {
			return fmt.Errorf("history record number: %w", err)
		}
		rec.Number = n
	}
	if len(wire.Prompt) > 1 {
		if err := json.Unmarshal(wire.Prompt[1], &rec.PromptID); err != nil {
			return fmt.Errorf("history record prompt id: %w", err)
		}
	}
	if len(wire.Prompt) > 2 {
		rec.Graph = wire.Prompt[2]
	}
	if len(wire.Prompt) > 3 {
		var extra struct {
			ClientID string `json:"client_id"`
		}
		if err := json.Unmarshal(wire.Prompt[3], &extra); err == nil {
			rec.ClientID = extra.ClientID
		}
	}
	*r = rec
	return nil
}

// Failed reports whether the server recorded an execution error.
func (r *HistoryRecord) Failed() bool {
	return strings.EqualFold(r.Status.StatusStr, "error")
}

// Artifacts partitions output filenames by type.
type Artifacts struct {
	Temp   []string `json:"temp,omitempty"`
	Output []string `json:"output,omitempty"`
	Input  []string `json:"input,omitempty"`
}

// Artifacts lists every image grouped by type. Nodes are visited in
// ascending identifier order and images in server order.
func (r *HistoryRecord) Artifacts() Artifacts {
	var out Artifacts
	for _, nodeID := range sortedKeys(r.Outputs) {
		for _, img := range r.Outputs[nodeID].Images {
			name := ArtifactPath(img)
			switch img.Type {
			case ArtifactTemp:
				out.Temp = append(out.Temp, name)
			case ArtifactOutput:
				out.Output = append(out.Output, name)
			case ArtifactInput:
				out.Input = append(out.Input, name)
			}
		}
	}
	return out
}

// Images returns every image record in the same order as Artifacts.
func (r *HistoryRecord) Images() []Image {
	var images []Image
	for _, nodeID := range sortedKeys(r.Outputs) {
		images = append(images, r.Outputs[nodeID].Images...)
	}
	return images
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aErr := strconv.ParseUint(keys[i], 10, 64)
		b, bErr := strconv.ParseUint(keys[j], 10, 64)
		if aErr == nil && bErr == nil && a != b {
			return a < b
		}
		if (aErr == nil) != (bErr == nil) {
			return aErr == nil
		}
		return keys[i] < keys[j]
	})
	return keys
}

// SortedHistory returns records ordered by queue number.
func SortedHistory(records map[string]HistoryRecord) []HistoryRecord {
	out := make([]HistoryRecord, 0, len(records))
	for _, key := range sortedKeys(records) {
		out = append(out, records[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// History fetches all records, or only promptID's when it is non-empty.
// An unknown prompt id yields an empty map.
func (c *Client) History(ctx context.Context, promptID string) (map[string]HistoryRecord, error) {
	endpoint := "/history"
	if id := strings.TrimSpace(promptID); id != "" {
		endpoint += "/" + url.PathEscape(id)
	}
	records := make(map[string]HistoryRecord)
	if err := c.getJSON(ctx, endpoint, nil, &records); err != nil {
		return nil, err
	}
	for key, rec := range records {
		if rec.PromptID == "" {
			rec.PromptID = key
			records[key] = rec
		}
	}
	return records, nil
}
