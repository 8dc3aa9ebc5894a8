// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mediatrack/internal/models"
	"github.com/tomtom215/mediatrack/internal/validation"
)

// maxFormFieldBytes bounds a single multipart field. The HTTP layer already
// limits the whole body; this only protects against a pathological part.
const maxFormFieldBytes = 4 << 20

var errEmptyBody = errors.New("empty body")

// jsonDocument returns the JSON document inside body. Plex posts
// multipart/form-data with the document in a "payload" field, Emby can post
// either a form with a "data" field or plain JSON. Anything else is treated as
// a raw JSON body.
func jsonDocument(contentType string, body []byte, fields ...string) ([]byte, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errEmptyBody
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body, nil
	}

	switch mediaType {
	case "multipart/form-data":
		return multipartField(body, params["boundary"], fields)
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("decode form: %w", err)
		}
		for _, f := range fields {
			if v := values.Get(f); v != "" {
				return []byte(v), nil
			}
		}
		return nil, fmt.Errorf("form has none of the fields %s", strings.Join(fields, ", "))
	default:
		return body, nil
	}
}

func multipartField(body []byte, boundary string, fields []string) ([]byte, error) {
	if boundary == "" {
		return nil, errors.New("multipart body without boundary")
	}
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart: %w", err)
		}
		name := part.FormName()
		for _, f := range fields {
			if name != f {
				continue
			}
			data, err := io.ReadAll(io.LimitReader(part, maxFormFieldBytes))
			_ = part.Close()
			if err != nil {
				return nil, fmt.Errorf("read field %s: %w", f, err)
			}
			return data, nil
		}
		_ = part.Close()
	}
	return nil, fmt.Errorf("multipart body has none of the fields %s", strings.Join(fields, ", "))
}

// decode unmarshals the JSON document and runs struct validation on v.
func decode(src models.SourceService, contentType string, body []byte, v interface{}, fields ...string) error {
	doc, err := jsonDocument(contentType, body, fields...)
	if err != nil {
		return parseErr(src, "", err)
	}
	if err := json.Unmarshal(doc, v); err != nil {
		return parseErr(src, "", fmt.Errorf("invalid JSON: %w", err))
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		return parseErr(src, verr.FirstField(), verr)
	}
	return nil
}

// addID stores a trimmed non-empty identifier.
func addID(ids map[string]string, kind, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if _, exists := ids[kind]; exists {
		return
	}
	ids[kind] = value
}

// mediaKindOf maps the item type names used by the upstream servers.
func mediaKindOf(itemType string) models.MediaKind {
	switch strings.ToLower(strings.TrimSpace(itemType)) {
	case "movie":
		return models.MediaMovie
	case "episode":
		return models.MediaEpisode
	default:
		return models.MediaUnknown
	}
}
