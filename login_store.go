package twostep

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const loginRecordVersion1 = 1

// redisLoginStore is the default LoginStore. Records live at
// <prefix>:rec:<id> without expiry (retention is external policy); the
// pending-match index at <prefix>:pend:<userID>:<code> carries the
// challenge TTL, which is what makes codes time-bound.
type redisLoginStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func newRedisLoginStore(client *redis.Client, cfg LoginStoreConfig, challengeTTL time.Duration) *redisLoginStore {
	prefix := cfg.RedisPrefix
	if prefix == "" {
		prefix = "tsl"
	}
	return &redisLoginStore{redis: client, prefix: prefix, ttl: challengeTTL}
}

func (s *redisLoginStore) recordKey(recordID string) string {
	return s.prefix + ":rec:" + recordID
}

func (s *redisLoginStore) pendingKey(userID, code string) string {
	return s.prefix + ":pend:" + userID + ":" + code
}

func (s *redisLoginStore) CreatePending(ctx context.Context, userID, code string) (*LoginRecord, error) {
	record := &LoginRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Code:      code,
		CreatedAt: time.Now().Unix(),
	}

	encoded, err := encodeLoginRecord(record)
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, s.recordKey(record.ID), encoded, 0).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoginStoreUnavailable, err)
	}
	// First writer keeps the pending claim if the same user ever draws the
	// same code twice; the later record is stored but never matchable.
	if err := s.redis.SetNX(ctx, s.pendingKey(userID, code), record.ID, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoginStoreUnavailable, err)
	}
	return record, nil
}

func (s *redisLoginStore) FindPendingMatch(ctx context.Context, userID, code string) (*LoginRecord, error) {
	recordID, err := s.redis.Get(ctx, s.pendingKey(userID, code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrLoginRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrLoginStoreUnavailable, err)
	}

	data, err := s.redis.Get(ctx, s.recordKey(recordID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrLoginRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrLoginStoreUnavailable, err)
	}

	record, err := decodeLoginRecord(data)
	if err != nil {
		return nil, err
	}
	if record.CodeConsumed {
		// Stale index entry; the record itself is kept.
		_, _ = s.redis.Del(ctx, s.pendingKey(userID, code)).Result()
		return nil, ErrLoginRecordNotFound
	}
	return record, nil
}

func (s *redisLoginStore) Consume(ctx context.Context, recordID, token string) error {
	const maxRetries = 4
	key := s.recordKey(recordID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeLoginRecord(data)
			if err != nil {
				return err
			}
			if record.CodeConsumed {
				return ErrLoginRecordConsumed
			}

			record.CodeConsumed = true
			record.Token = token
			record.TokenActive = true

			updated, err := encodeLoginRecord(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				pipe.Del(ctx, s.pendingKey(record.UserID, record.Code))
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			// Concurrent writer touched the record; re-read and retry. If
			// the winner consumed it we fail with ErrLoginRecordConsumed
			// on the next pass.
			continue
		}
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.Nil):
			return ErrLoginRecordNotFound
		case errors.Is(err, ErrLoginRecordConsumed):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrLoginStoreUnavailable, err)
		}
	}

	return fmt.Errorf("%w: consume retries exhausted", ErrLoginStoreUnavailable)
}

// get re-reads a record by id. Not part of the LoginStore interface; used
// by tests to inspect stored state.
func (s *redisLoginStore) get(ctx context.Context, recordID string) (*LoginRecord, error) {
	data, err := s.redis.Get(ctx, s.recordKey(recordID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrLoginRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrLoginStoreUnavailable, err)
	}
	return decodeLoginRecord(data)
}

const (
	recordFlagConsumed    = 1 << 0
	recordFlagTokenActive = 1 << 1
)

func encodeLoginRecord(record *LoginRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(loginRecordVersion1)

	var flags uint8
	if record.CodeConsumed {
		flags |= recordFlagConsumed
	}
	if record.TokenActive {
		flags |= recordFlagTokenActive
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}

	for _, field := range []string{record.ID, record.UserID, record.Code, record.Token} {
		if len(field) > 65535 {
			return nil, errors.New("login record field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeLoginRecord(data []byte) (*LoginRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != loginRecordVersion1 {
		return nil, errors.New("invalid login record version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &LoginRecord{
		CodeConsumed: flags&recordFlagConsumed != 0,
		TokenActive:  flags&recordFlagTokenActive != 0,
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}

	for _, field := range []*string{&record.ID, &record.UserID, &record.Code, &record.Token} {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	return record, nil
}
