package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"marketplace/internal/app/apperr"
	"marketplace/internal/app/commands"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	// IdempotencyKey is empty when the caller did not ask for replay protection.
	IdempotencyKey() string
	ResultPrototype() any // pointer to a value of the handler result type
}

// IdempotencyRecord is a stored result. Fingerprint hashes the command body
// that produced Payload.
type IdempotencyRecord struct {
	Key         string
	Fingerprint string
	Payload     []byte
	OccurredAt  time.Time
	ExpiresAt   time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var (
	errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
	errKeyReused        = errors.New("middleware: idempotency key bound to another request")
)

// Idempotency replays the stored result of a command already executed under
// the same key. Only successes are stored: a rejected request may be retried
// with corrected input under the same key. A key replayed with a different
// command body is a conflict.
func Idempotency(store IdempotencyStore, codec ResultCodec, ttl time.Duration) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok {
				return nextFn(ctx, cmd)
			}
			key := idCmd.IdempotencyKey()
			if key == "" {
				return nextFn(ctx, cmd)
			}
			key = cmd.Key() + ":" + key
			fingerprint, err := Fingerprint(cmd)
			if err != nil {
				return nil, apperr.Internal(err)
			}
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, apperr.Internal(err)
			}
			if found {
				if rec.Fingerprint != "" && rec.Fingerprint != fingerprint {
					return nil, apperr.Conflict("idempotency key reused with a different request", errKeyReused)
				}
				proto := idCmd.ResultPrototype()
				if proto == nil {
					return nil, apperr.Internal(errMissingPrototype)
				}
				if err := codec.Decode(rec.Payload, proto); err != nil {
					return nil, apperr.Internal(err)
				}
				return normalizePrototype(proto), nil
			}
			result, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			now := time.Now().UTC()
			record := IdempotencyRecord{Key: key, Fingerprint: fingerprint, OccurredAt: now}
			if ttl > 0 {
				record.ExpiresAt = now.Add(ttl)
			}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					return nil, apperr.Internal(encErr)
				}
				record.Payload = payload
			}
			if saveErr := store.Save(ctx, record); saveErr != nil {
				return nil, apperr.Internal(saveErr)
			}
			return result, nil
		})
	}
}

// Fingerprint is the hex SHA-256 of the command's JSON form. Fields tagged
// `json:"-"` (principal, header key) stay out of it.
func Fingerprint(cmd commands.Command) (string, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// normalizePrototype dereferences the decoded prototype so replays return the
// same value type as a first execution.
func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return proto
}
