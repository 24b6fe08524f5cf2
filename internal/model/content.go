package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Status is the lifecycle state of a content item.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Meta holds the lifecycle columns shared by every content table.
type Meta struct {
	ID          uint64     `json:"id"`
	Status      Status     `json:"status"`
	CreatedBy   uint64     `json:"created_by"`
	PublishedBy *uint64    `json:"published_by,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ContentMeta gives repositories and services access to the shared columns.
func (m *Meta) ContentMeta() *Meta { return m }

// Content is implemented by pointers to the concrete content types.  Fields
// and FieldTargets must list values in the same order as the table's
// content columns.
type Content interface {
	ContentMeta() *Meta
	Fields() []any
	FieldTargets() []any
	Validate() error
	Headline() string
}

// ImageOwner is implemented by content that references stored images by
// object key.
type ImageOwner interface {
	ImageKeys() []string
	AddImages(keys ...string)
}

// ContentPtr is satisfied by pointers to content models such as *model.Event.
type ContentPtr[T any] interface {
	*T
	Content
}

// ErrTitleRequired is returned by Validate when the title is blank.
var ErrTitleRequired = errors.New("title is required")

// Event is a schedule entry shown on the public site once published.
type Event struct {
	Meta
	Title       string     `json:"title"`
	Date        string     `json:"date"`
	StartTime   string     `json:"start_time"`
	EndTime     string     `json:"end_time"`
	Venue       string     `json:"venue"`
	Speakers    string     `json:"speakers"`
	Theme       string     `json:"theme"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Images      StringList `json:"images"`
}

func (e *Event) Fields() []any {
	return []any{e.Title, e.Date, e.StartTime, e.EndTime, e.Venue, e.Speakers, e.Theme, e.Category, e.Description, e.Images}
}

func (e *Event) FieldTargets() []any {
	return []any{&e.Title, &e.Date, &e.StartTime, &e.EndTime, &e.Venue, &e.Speakers, &e.Theme, &e.Category, &e.Description, &e.Images}
}

func (e *Event) Headline() string { return e.Title }

func (e *Event) ImageKeys() []string { return e.Images }

func (e *Event) AddImages(keys ...string) { e.Images = append(e.Images, keys...) }

func (e *Event) Validate() error {
	if e.Title == "" {
		return ErrTitleRequired
	}
	return nil
}

// Publication is a paper or article listed on the publications page.
type Publication struct {
	Meta
	Title       string `json:"title"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

func (p *Publication) Fields() []any {
	return []any{p.Title, p.Date, p.Description, p.Link}
}

func (p *Publication) FieldTargets() []any {
	return []any{&p.Title, &p.Date, &p.Description, &p.Link}
}

func (p *Publication) Headline() string { return p.Title }

func (p *Publication) Validate() error {
	if p.Title == "" {
		return ErrTitleRequired
	}
	return nil
}

// StringList is stored as a JSON array; NULL scans to an empty list.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("StringList: unsupported source type")
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*l = out
	return nil
}
