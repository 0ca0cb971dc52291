// Package deviceid owns the stable per-installation device identifier.
package deviceid

import (
	"errors"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-authgate/memberguard/internal/core"

	"github.com/google/uuid"
)

const (
	LabelMobile  = "Mobile"
	LabelDesktop = "Desktop"

	fallbackPrefix    = "dev-"
	fallbackSuffixLen = 8
	base36            = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var (
	mobileAgent = regexp.MustCompile(`(?i)Mobi|Android`)

	// Replaced in tests to exercise the fallback path.
	newUUID = uuid.NewRandom
	now     = time.Now
)

// GetOrCreate returns the persisted device id, generating and storing one on
// first use. It reports false only when storage is nil, unreadable or
// unwritable.
func GetOrCreate(storage core.Storage) (string, bool) {
	if storage == nil {
		return "", false
	}

	id, err := storage.Get(core.KeyDeviceID)
	switch {
	case err == nil && id != "":
		return id, true
	case err != nil && !errors.Is(err, core.ErrStorageKeyNotFound):
		return "", false
	}

	id = generate()
	if err := storage.Set(core.KeyDeviceID, id); err != nil {
		return "", false
	}
	return id, true
}

func generate() string {
	if u, err := newUUID(); err == nil {
		return u.String()
	}
	return fallbackID(now())
}

// fallbackID is dev-<base36 unix ms>-<8 random base36 chars>.
func fallbackID(t time.Time) string {
	var b strings.Builder
	b.WriteString(fallbackPrefix)
	b.WriteString(strconv.FormatInt(t.UnixMilli(), 36))
	b.WriteByte('-')
	for range fallbackSuffixLen {
		b.WriteByte(base36[rand.IntN(len(base36))])
	}
	return b.String()
}

// Label classifies a user agent as Mobile or Desktop.
func Label(userAgent string) string {
	if mobileAgent.MatchString(userAgent) {
		return LabelMobile
	}
	return LabelDesktop
}
