// internal/store/models.go
package store

import (
	"crypto/rand"
	"math/big"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"

	StateUp   = "up"
	StateDown = "down"

	// CheckIDLength is the length of the random alphanumeric check id.
	CheckIDLength = 20

	// PhoneLength is the length of the phone-style user identifier.
	PhoneLength = 10
)

// Check is one user-configured endpoint definition. URL carries host, path
// and query but no scheme; Protocol supplies the scheme at probe time.
// State and LastChecked are absent until the worker has probed the check
// at least once.
type Check struct {
	ID             string `json:"id"`
	UserPhone      string `json:"userPhone"`
	Protocol       string `json:"protocol"`
	URL            string `json:"url"`
	Method         string `json:"method"`
	SuccessCodes   []int  `json:"successCodes"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	State          string `json:"state,omitempty"`
	LastChecked    int64  `json:"lastChecked,omitempty"`
}

// Validate checks every required field of a check record. It is applied
// both when a handler writes the record and again when the worker reads it
// back, so records written by an older schema or corrupted by partial
// writes are caught before a probe is attempted.
func (c Check) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required, validation.Length(CheckIDLength, CheckIDLength), is.Alphanumeric),
		validation.Field(&c.UserPhone, validation.Required, validation.Length(PhoneLength, PhoneLength), is.Digit),
		validation.Field(&c.Protocol, validation.Required, validation.In(ProtocolHTTP, ProtocolHTTPS)),
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.Method, validation.Required, validation.In("get", "post", "put", "delete")),
		validation.Field(&c.SuccessCodes, validation.Required, validation.Length(1, 0)),
		validation.Field(&c.TimeoutSeconds, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&c.State, validation.In(StateUp, StateDown)),
		validation.Field(&c.LastChecked, validation.Min(0)),
	)
}

// Normalize fills the optional fields a record written before its first
// probe will not have. A check defaults to down until proven up.
func (c *Check) Normalize() {
	if c.State != StateUp && c.State != StateDown {
		c.State = StateDown
	}
	if c.LastChecked < 0 {
		c.LastChecked = 0
	}
}

// User is an account record keyed by phone number. Checks holds the ids of
// the checks the user owns; its size is bounded by the configured maximum.
type User struct {
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	Phone          string   `json:"phone"`
	HashedPassword string   `json:"hashedPassword"`
	TOSAgreement   bool     `json:"tosAgreement"`
	Checks         []string `json:"checks,omitempty"`
}

func (u User) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.FirstName, validation.Required),
		validation.Field(&u.LastName, validation.Required),
		validation.Field(&u.Phone, validation.Required, validation.Length(PhoneLength, PhoneLength), is.Digit),
		validation.Field(&u.HashedPassword, validation.Required),
		validation.Field(&u.TOSAgreement, validation.Required),
	)
}

// Token is a session token. Expires is epoch milliseconds.
type Token struct {
	ID      string `json:"id"`
	Phone   string `json:"phone"`
	Expires int64  `json:"expires"`
}

func (t Token) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required, is.UUID),
		validation.Field(&t.Phone, validation.Required, validation.Length(PhoneLength, PhoneLength), is.Digit),
		validation.Field(&t.Expires, validation.Required, validation.Min(1)),
	)
}

const idCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewCheckID returns a 20-character random alphanumeric identifier.
func NewCheckID() string {
	b := make([]byte, CheckIDLength)
	max := big.NewInt(int64(len(idCharset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			panic(err)
		}
		b[i] = idCharset[n.Int64()]
	}
	return string(b)
}
