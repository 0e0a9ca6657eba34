// Package fingerprint computes content hashes used to detect changed records between syncs.
//
// A record is encoded into a canonical byte stream (sorted object keys, ordered arrays, one
// textual form per number, a type tag before every value) and hashed with xxHash64. Equal
// content gives an equal hash regardless of key order or how a number was written. The hash
// is for change detection only and offers no protection against deliberate collisions.
package fingerprint

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ContentHash is a 16 character lowercase hex digest.
type ContentHash string

// Size is the length of a ContentHash.
const Size = 16

// type tags
const (
	tagNull   = 'n'
	tagTrue   = 't'
	tagFalse  = 'f'
	tagNumber = 'd'
	tagString = 's'
	tagArray  = '['
	tagObject = '{'
)

// Digest hashes a record.
func Digest(record models.Record) ContentHash {
	return DigestValue(record.Value())
}

// DigestValue hashes any value.
func DigestValue(v models.Value) ContentHash {
	return DigestExcluding(v, nil)
}

// DigestExcluding hashes v while skipping object fields named by dot-notation paths
// (e.g. "_processed_at", "form_values.notes"). Excluding a path also excludes everything
// below it. Array elements share their parent's path.
func DigestExcluding(v models.Value, excludeFields map[string]bool) ContentHash {
	var buf bytes.Buffer
	canonicalize(&buf, v, excludeFields, "")
	return ContentHash(fmt.Sprintf("%016x", xxhash.Sum64(buf.Bytes())))
}

// DigestJSON hashes a raw JSON document.
func DigestJSON(data []byte) (ContentHash, error) {
	v, err := models.ParseJSON(data)
	if err != nil {
		return "", err
	}
	return DigestValue(v), nil
}

// Canonical returns the byte stream that Digest hashes.
func Canonical(v models.Value) []byte {
	var buf bytes.Buffer
	canonicalize(&buf, v, nil, "")
	return buf.Bytes()
}

// HasChanged compares two hashes. An empty previous hash means the record is new.
func HasChanged(previous, current ContentHash) bool {
	return previous != current
}

func canonicalize(buf *bytes.Buffer, v models.Value, excludeFields map[string]bool, currentPath string) {
	switch v.Kind() {
	case models.KindNull:
		buf.WriteByte(tagNull)
	case models.KindBool:
		if b, _ := v.AsBool(); b {
			buf.WriteByte(tagTrue)
		} else {
			buf.WriteByte(tagFalse)
		}
	case models.KindNumber:
		writeString(buf, tagNumber, v.Text())
	case models.KindString:
		s, _ := v.AsString()
		writeString(buf, tagString, s)
	case models.KindArray:
		items := v.Items()
		buf.WriteByte(tagArray)
		buf.WriteString(strconv.Itoa(len(items)))
		buf.WriteByte(':')
		for _, item := range items {
			canonicalize(buf, item, excludeFields, currentPath)
		}
	case models.KindObject:
		canonicalizeObject(buf, v.Object(), excludeFields, currentPath)
	}
}

func canonicalizeObject(buf *bytes.Buffer, obj *models.Object, excludeFields map[string]bool, currentPath string) {
	keys := obj.SortedKeys()

	included := keys[:0]
	for _, key := range keys {
		fieldPath := key
		if currentPath != "" {
			fieldPath = currentPath + "." + key
		}
		if !shouldExcludeField(fieldPath, excludeFields) {
			included = append(included, key)
		}
	}

	buf.WriteByte(tagObject)
	buf.WriteString(strconv.Itoa(len(included)))
	buf.WriteByte(':')
	for _, key := range included {
		fieldPath := key
		if currentPath != "" {
			fieldPath = currentPath + "." + key
		}
		writeString(buf, tagString, key)
		v, _ := obj.Get(key)
		canonicalize(buf, v, excludeFields, fieldPath)
	}
}

// writeString length-prefixes s so adjacent values cannot run together.
func writeString(buf *bytes.Buffer, tag byte, s string) {
	buf.WriteByte(tag)
	buf.WriteString(strconv.Itoa(len(s)))
	buf.WriteByte(':')
	buf.WriteString(s)
}

func shouldExcludeField(fieldPath string, excludeFields map[string]bool) bool {
	if len(excludeFields) == 0 {
		return false
	}

	if excludeFields[fieldPath] {
		return true
	}

	for excluded := range excludeFields {
		if strings.HasPrefix(fieldPath, excluded+".") {
			return true
		}
	}

	return false
}
