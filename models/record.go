// ABOUTME: Resource record envelope and kind-specific payloads
// ABOUTME: Payload is a tagged union keyed by Kind with custom JSON encoding
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Payload is implemented by exactly one struct per Kind.
type Payload interface {
	Kind() Kind
	// Title is the short label shown in lists and dialogs.
	Title() string
}

// DevicePayload describes a donated device.
type DevicePayload struct {
	Name        string   `json:"name"`
	Type        string   `json:"type,omitempty"`
	Category    string   `json:"category,omitempty"`
	Condition   string   `json:"condition,omitempty"`
	Description string   `json:"description,omitempty"`
	DonorID     string   `json:"donor_id,omitempty"`
	Location    string   `json:"location,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
}

func (DevicePayload) Kind() Kind      { return KindDevice }
func (p DevicePayload) Title() string { return p.Name }

// RequestPayload is a beneficiary's request for a device.
type RequestPayload struct {
	RequesterID  string `json:"requester_id,omitempty"`
	Requester    string `json:"requester"`
	Organization string `json:"organization,omitempty"`
	DeviceType   string `json:"device_type,omitempty"`
	Quantity     int    `json:"quantity,omitempty"`
	Message      string `json:"message,omitempty"`
}

func (RequestPayload) Kind() Kind { return KindRequest }

func (p RequestPayload) Title() string {
	if p.DeviceType == "" {
		return p.Requester
	}
	return fmt.Sprintf("%s (%s)", p.Requester, p.DeviceType)
}

// UserPayload is a marketplace account profile.
type UserPayload struct {
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	Organization string `json:"organization,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

func (UserPayload) Kind() Kind      { return KindUser }
func (p UserPayload) Title() string { return p.Name }

// TeamMemberPayload is a staff bio shown on the public team page.
type TeamMemberPayload struct {
	Name     string `json:"name"`
	JobTitle string `json:"job_title,omitempty"`
	Email    string `json:"email,omitempty"`
	Bio      string `json:"bio,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

func (TeamMemberPayload) Kind() Kind      { return KindTeamMember }
func (p TeamMemberPayload) Title() string { return p.Name }

// NewPayload returns a zero payload for kind.
func NewPayload(kind Kind) (Payload, error) {
	switch kind {
	case KindDevice:
		return &DevicePayload{}, nil
	case KindRequest:
		return &RequestPayload{}, nil
	case KindUser:
		return &UserPayload{}, nil
	case KindTeamMember:
		return &TeamMemberPayload{}, nil
	}
	return nil, fmt.Errorf("unknown resource kind %q", kind)
}

// DecodePayload unmarshals raw JSON into the concrete payload for kind.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	p, err := NewPayload(kind)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return deref(p), nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
	}
	return deref(p), nil
}

// PayloadFromMap converts a loosely typed field map (CLI flags, MCP input)
// into the kind's payload. Unknown fields are rejected.
func PayloadFromMap(kind Kind, fields map[string]any) (Payload, error) {
	p, err := NewPayload(kind)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("invalid %s fields: %w", kind.Noun(), err)
	}
	return deref(p), nil
}

// FieldsFromStrings types raw key=value input from flags and forms.
// quantity is an integer and *_urls fields are comma separated lists; every
// other field is a string.
func FieldsFromStrings(raw map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		v = strings.TrimSpace(v)
		switch {
		case k == "quantity":
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("quantity must be a number, got %q", v)
			}
			out[k] = n
		case strings.HasSuffix(k, "_urls"):
			var urls []string
			for _, u := range strings.Split(v, ",") {
				if u = strings.TrimSpace(u); u != "" {
					urls = append(urls, u)
				}
			}
			out[k] = urls
		default:
			out[k] = v
		}
	}
	return out, nil
}

// PayloadToMap flattens a payload into its JSON field map.
func PayloadToMap(p Payload) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *DevicePayload:
		return *v
	case *RequestPayload:
		return *v
	case *UserPayload:
		return *v
	case *TeamMemberPayload:
		return *v
	}
	return p
}

// Record is the generic envelope every collection returns.
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Payload   Payload   `json:"payload"`
}

// Title returns the payload title, falling back to the id.
func (r *Record) Title() string {
	if r.Payload != nil {
		if t := r.Payload.Title(); t != "" {
			return t
		}
	}
	return r.ID
}

type recordJSON struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Payload   json.RawMessage `json:"payload"`
}

// UnmarshalJSON decodes the payload according to the record kind.
func (r *Record) UnmarshalJSON(data []byte) error {
	var aux recordJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if !aux.Kind.Valid() {
		return fmt.Errorf("record %q has unknown kind %q", aux.ID, aux.Kind)
	}
	payload, err := DecodePayload(aux.Kind, aux.Payload)
	if err != nil {
		return err
	}
	*r = Record{
		ID:        aux.ID,
		Kind:      aux.Kind,
		Status:    aux.Status,
		CreatedAt: aux.CreatedAt,
		UpdatedAt: aux.UpdatedAt,
		Payload:   payload,
	}
	return nil
}

// MarshalJSON refuses to encode a payload that belongs to another kind.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.Payload != nil && r.Payload.Kind() != r.Kind {
		return nil, fmt.Errorf("record %q: %s payload on %s record", r.ID, r.Payload.Kind(), r.Kind)
	}
	var raw json.RawMessage
	if r.Payload != nil {
		b, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(recordJSON{
		ID:        r.ID,
		Kind:      r.Kind,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Payload:   raw,
	})
}

// Clone returns a copy safe to hand out of a cache. Payloads are value types;
// the device image list is the one slice and is copied too.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if d, ok := r.Payload.(DevicePayload); ok && d.ImageURLs != nil {
		d.ImageURLs = append([]string(nil), d.ImageURLs...)
		c.Payload = d
	}
	return &c
}
