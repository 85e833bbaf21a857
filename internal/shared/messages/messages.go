package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Render substitutes {key} placeholders in Title and Body.
func (m MessageText) Render(vars map[string]string) MessageText {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return MessageText{Title: r.Replace(m.Title), Body: r.Replace(m.Body)}
}

type Messages struct {
	PaymentFailed MessageText `json:"payment_failed"`
}

// Default returns the built-in alert texts.
func Default() *Messages {
	return &Messages{
		PaymentFailed: MessageText{
			Title: "Payment failed",
			Body:  "Payment {hash} from account {account} failed: {error}",
		},
	}
}

// Load reads an alert texts JSON file. Texts missing from the file keep
// their defaults; an empty path returns the defaults.
func Load(path string) (*Messages, error) {
	m := Default()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}

	var fromFile Messages
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}
	if fromFile.PaymentFailed.Title != "" {
		m.PaymentFailed.Title = fromFile.PaymentFailed.Title
	}
	if fromFile.PaymentFailed.Body != "" {
		m.PaymentFailed.Body = fromFile.PaymentFailed.Body
	}
	return m, nil
}
