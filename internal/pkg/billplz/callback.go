package billplz

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"
)

// CallbackPayload is the parsed form body of a Billplz payment callback.
type CallbackPayload struct {
	BillID            string
	PaidAt            string
	TransactionID     string
	TransactionStatus string
	XSignature        string

	values url.Values
}

// ParseCallbackBody parses the form-encoded callback body delivered by the
// gateway. Both the flattened key style (billplzid) and the bracketed style
// (billplz[id]) are accepted.
func ParseCallbackBody(body []byte) (*CallbackPayload, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.New("empty callback body")
	}

	return &CallbackPayload{
		BillID:            firstValue(values, "billplzid", "billplz[id]"),
		PaidAt:            firstValue(values, "billplzpaid_at", "billplz[paid_at]"),
		TransactionID:     firstValue(values, "billplztransaction_id", "billplz[transaction_id]"),
		TransactionStatus: firstValue(values, "billplztransaction_status", "billplz[transaction_status]"),
		XSignature:        firstValue(values, "x_signature"),
		values:            values,
	}, nil
}

// VerifySignature checks the callback's x_signature against the configured
// X-Signature key. The source string is built from every non-signature
// element as key+value, sorted case-insensitively and joined by "|", then
// HMAC-SHA256 hashed.
func (p *CallbackPayload) VerifySignature(signatureKey string) bool {
	sig := strings.TrimSpace(p.XSignature)
	key := strings.TrimSpace(signatureKey)
	if sig == "" || key == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(signatureSource(p.values)))
	return hmac.Equal(mac.Sum(nil), decodedSig)
}

func signatureSource(values url.Values) string {
	elements := make([]string, 0, len(values))
	for k, vs := range values {
		if k == "x_signature" {
			continue
		}
		v := ""
		if len(vs) > 0 {
			v = vs[0]
		}
		elements = append(elements, k+v)
	}
	sort.Slice(elements, func(i, j int) bool {
		return strings.ToLower(elements[i]) < strings.ToLower(elements[j])
	})
	return strings.Join(elements, "|")
}

// Sign computes the x_signature for a set of callback values. Exposed for
// tests and for building signed fixtures.
func Sign(values url.Values, signatureKey string) string {
	mac := hmac.New(sha256.New, []byte(signatureKey))
	mac.Write([]byte(signatureSource(values)))
	return hex.EncodeToString(mac.Sum(nil))
}

// paidAtLayouts covers the timestamp formats the gateway has been observed to
// deliver in paid_at.
var paidAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05.000Z07:00",
}

// ParsePaidAt parses the callback paid_at value.
func ParsePaidAt(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errors.New("paid_at is empty")
	}
	for _, layout := range paidAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized paid_at format: " + s)
}

func firstValue(values url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(values.Get(k)); v != "" {
			return v
		}
	}
	return ""
}
