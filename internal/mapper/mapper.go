// Package mapper turns raw live query documents into typed records.
//
// Missing fields take their zero value. A field holding a value of the wrong
// type fails the whole document; the collection helpers log and skip such
// documents so the rest of a snapshot is still delivered.
package mapper

import (
	"errors"
	"fmt"
	"time"

	"tripwise-backend/internal/livequery"
	"tripwise-backend/internal/metrics"
	"tripwise-backend/internal/models"

	"github.com/rs/zerolog/log"
)

var ErrMalformed = errors.New("malformed document")

// Func maps one document.
type Func[T any] func(livequery.Document) (T, error)

// All maps every document, skipping those that fail.
func All[T any](kind string, docs []livequery.Document, fn Func[T]) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := fn(doc)
		if err != nil {
			log.Warn().
				Err(err).
				Str("kind", kind).
				Str("path", doc.Path.String()).
				Str("doc_id", doc.ID).
				Msg("Skipping unmappable document")
			metrics.SkippedDocuments.WithLabelValues(kind).Inc()
			continue
		}
		out = append(out, v)
	}
	return out
}

func User(doc livequery.Document) (models.User, error) {
	r := reader{doc: doc}
	u := models.User{
		ID:                doc.ID,
		Username:          r.str("username"),
		LowercaseUsername: r.str("lowercase_username"),
		Email:             r.str("email"),
		ProfilePictureURL: r.optStr("profile_picture_url"),
		Friends:           r.strs("friends"),
		CreatedAt:         r.time("created_at"),
	}
	return u, r.err()
}

// Trip maps a trip. The id and owner come from the document path, not from
// stored fields.
func Trip(doc livequery.Document) (models.Trip, error) {
	r := reader{doc: doc}
	t := models.Trip{
		ID:             doc.ID,
		UserID:         doc.Path.Param("users"),
		Destination:    r.str("destination"),
		StartDate:      r.str("start_date"),
		EndDate:        r.str("end_date"),
		Type:           models.TripType(r.str("type")),
		Flights:        r.str("flights"),
		Accommodation:  r.str("accommodation"),
		Notes:          r.str("notes"),
		ImageURLs:      r.strs("image_urls"),
		InvitedFriends: r.strs("invited_friends"),
	}
	if t.UserID == "" {
		t.UserID = r.str("user_id")
	}
	return t, r.err()
}

// TimelineItem maps a timeline item. The id and trip come from the document
// path.
func TimelineItem(doc livequery.Document) (models.TimelineItem, error) {
	r := reader{doc: doc}
	item := models.TimelineItem{
		ID:          doc.ID,
		TripID:      doc.Path.Param("trips"),
		Date:        r.str("date"),
		Time:        r.str("time"),
		Description: r.str("description"),
		Notes:       r.str("notes"),
		ImageURLs:   r.strs("image_urls"),
	}
	if item.TripID == "" {
		item.TripID = r.str("trip_id")
	}
	return item, r.err()
}

func SharedTrip(doc livequery.Document) (models.SharedTrip, error) {
	r := reader{doc: doc}
	s := models.SharedTrip{
		ID:                doc.ID,
		UserID:            r.str("user_id"),
		Username:          r.str("username"),
		ProfilePictureURL: r.optStr("profile_picture_url"),
		SharedText:        r.str("shared_text"),
		ImageURLs:         r.strs("image_urls"),
		Timestamp:         r.time("timestamp"),
		OriginalTripID:    r.str("original_trip_id"),
	}
	return s, r.err()
}

func Conversation(doc livequery.Document) (models.Conversation, error) {
	r := reader{doc: doc}
	c := models.Conversation{
		ID:                         doc.ID,
		OwnerID:                    doc.Path.Param("users"),
		Participants:               r.strs("participants"),
		LastMessage:                r.str("last_message"),
		LastMessageSenderID:        r.str("last_message_sender_id"),
		OtherUserUsername:          r.str("other_user_username"),
		OtherUserProfilePictureURL: r.str("other_user_profile_picture_url"),
		LastUpdated:                r.time("last_updated"),
	}
	if c.OwnerID == "" {
		c.OwnerID = r.str("owner_id")
	}
	return c, r.err()
}

func Message(doc livequery.Document) (models.Message, error) {
	r := reader{doc: doc}
	m := models.Message{
		ID:             doc.ID,
		ConversationID: doc.Path.Param("conversations"),
		SenderID:       r.str("sender_id"),
		Text:           r.str("text"),
		Timestamp:      r.time("timestamp"),
	}
	if m.ConversationID == "" {
		m.ConversationID = r.str("conversation_id")
	}
	return m, r.err()
}

func Friend(doc livequery.Document) (models.Friend, error) {
	r := reader{doc: doc}
	f := models.Friend{
		OwnerID:           doc.Path.Param("users"),
		ID:                doc.ID,
		Username:          r.str("username"),
		Email:             r.str("email"),
		ProfilePictureURL: r.optStr("profile_picture_url"),
		AddedAt:           r.time("added_at"),
	}
	return f, r.err()
}

// reader pulls typed fields out of a document and remembers the first
// type mismatch.
type reader struct {
	doc   livequery.Document
	first error
}

func (r *reader) err() error {
	if r.first != nil {
		return r.first
	}
	if r.doc.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformed)
	}
	return nil
}

func (r *reader) fail(field string, v any) {
	if r.first == nil {
		r.first = fmt.Errorf("%w: field %s has type %T", ErrMalformed, field, v)
	}
}

func (r *reader) str(field string) string {
	switch v := r.doc.Fields[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		r.fail(field, v)
		return ""
	}
}

func (r *reader) optStr(field string) *string {
	s := r.str(field)
	if s == "" {
		return nil
	}
	return &s
}

func (r *reader) strs(field string) []string {
	switch v := r.doc.Fields[field].(type) {
	case nil:
		return []string{}
	case []string:
		return append([]string{}, v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				r.fail(field, e)
				return []string{}
			}
			out = append(out, s)
		}
		return out
	default:
		r.fail(field, v)
		return []string{}
	}
}

func (r *reader) time(field string) time.Time {
	switch v := r.doc.Fields[field].(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			r.fail(field, v)
			return time.Time{}
		}
		return t
	default:
		r.fail(field, v)
		return time.Time{}
	}
}
