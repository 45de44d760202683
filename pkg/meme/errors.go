package meme

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures. Rate limiting is not a Kind; it is reported through
// cooldown.Decision.
type Kind int

const (
	KindUnknown Kind = iota
	AssetUnavailable
	EmptyCorpus
	FetchTimeout
	FetchFailed
	DecodeError
	FontUnavailable
	EncodeError
	DeliveryError
)

func (k Kind) String() string {
	switch k {
	case AssetUnavailable:
		return "asset_unavailable"
	case EmptyCorpus:
		return "empty_corpus"
	case FetchTimeout:
		return "fetch_timeout"
	case FetchFailed:
		return "fetch_failed"
	case DecodeError:
		return "decode_error"
	case FontUnavailable:
		return "font_unavailable"
	case EncodeError:
		return "encode_error"
	case DeliveryError:
		return "delivery_error"
	default:
		return "unknown"
	}
}

// Error is a classified pipeline failure. Op names the stage that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
// FetchFailed and DecodeError are kinds of AssetUnavailable and match ErrAssetUnavailable too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == AssetUnavailable && (e.Kind == FetchFailed || e.Kind == DecodeError)
}

var (
	ErrAssetUnavailable = &Error{Kind: AssetUnavailable}
	ErrEmptyCorpus      = &Error{Kind: EmptyCorpus}
	ErrFetchTimeout     = &Error{Kind: FetchTimeout}
	ErrFetchFailed      = &Error{Kind: FetchFailed}
	ErrDecode           = &Error{Kind: DecodeError}
	ErrFontUnavailable  = &Error{Kind: FontUnavailable}
	ErrEncode           = &Error{Kind: EncodeError}
	ErrDelivery         = &Error{Kind: DeliveryError}
)

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
