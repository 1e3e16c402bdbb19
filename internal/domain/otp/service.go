package otp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julo/lendcore/internal/cache"
	"github.com/julo/lendcore/internal/domain/featuresetting"
	"github.com/julo/lendcore/internal/notify"
	"github.com/julo/lendcore/internal/observability"
	"golang.org/x/crypto/bcrypt"
)

var phonePattern = regexp.MustCompile(`^(\+62|62|0)8[0-9]{7,12}$`)

func IsPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

var knownActions = map[string]bool{ActionRegister: true, ActionResetPIN: true, ActionLogin: true}

type Service struct {
	store    Store
	features FeatureReader
	senders  map[string]Sender
	now      func() time.Time
}

func NewService(store Store, features FeatureReader, senders map[string]Sender) *Service {
	return &Service{
		store:    store,
		features: features,
		senders:  senders,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) settings(ctx context.Context) Settings {
	out := DefaultSettings()
	if s.features == nil {
		return out
	}
	loaded := DefaultSettings()
	if err := s.features.Params(ctx, featuresetting.OTPSetting, &loaded); err != nil {
		return out
	}
	if loaded.Digits < 4 || loaded.Digits > 8 {
		loaded.Digits = out.Digits
	}
	return loaded
}

func (s *Service) Request(ctx context.Context, in RequestInput) (*RequestResult, error) {
	res, err := s.request(ctx, in)
	result := "sent"
	if err != nil {
		result = err.Error()
	}
	observability.RecordOTPRequest(in.Channel, result)
	return res, err
}

func (s *Service) request(ctx context.Context, in RequestInput) (*RequestResult, error) {
	destination, err := normalizeDestination(in.Channel, in.Destination)
	if err != nil {
		return nil, err
	}
	if !knownActions[in.Action] {
		return nil, ErrOTPInvalidInput
	}
	sender, ok := s.senders[in.Channel]
	if !ok {
		return nil, ErrChannelUnavailable
	}
	cfg := s.settings(ctx)
	now := s.now()

	resendKey := key("resend", in.Action, destination)
	if wait, err := s.store.TTL(ctx, resendKey); err != nil {
		return nil, err
	} else if wait > 0 {
		return nil, ErrOTPResendTooSoon
	}

	countKey := key("count", in.Action, destination)
	count, err := s.store.Incr(ctx, countKey)
	if err != nil {
		return nil, err
	}
	if count == 1 {
		if _, err := s.store.Expire(ctx, countKey, seconds(cfg.RequestWindowSeconds)); err != nil {
			return nil, err
		}
	}
	if count > cfg.MaxRequest {
		return nil, ErrOTPMaxRequest
	}

	code, err := generateCode(cfg.Digits)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	rec := record{RequestID: uuid.NewString(), Hash: string(hash), Channel: in.Channel}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, key("code", in.Action, destination), raw, seconds(cfg.ExpirySeconds)); err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, key("attempts", in.Action, destination)); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, resendKey, []byte(rec.RequestID), seconds(cfg.WaitTimeSeconds)); err != nil {
		return nil, err
	}

	if err := sender.Send(ctx, notify.Message{
		To:      destination,
		Subject: "Kode verifikasi JULO",
		Body:    fmt.Sprintf("Kode OTP JULO Anda: %s. Berlaku %d menit. JANGAN berikan kode ini kepada siapa pun.", code, max(cfg.ExpirySeconds/60, 1)),
	}); err != nil {
		return nil, fmt.Errorf("deliver otp: %w", err)
	}

	return &RequestResult{
		RequestID:         rec.RequestID,
		ExpiresAt:         now.Add(seconds(cfg.ExpirySeconds)),
		ResendAt:          now.Add(seconds(cfg.WaitTimeSeconds)),
		RemainingRequests: max(cfg.MaxRequest-count, 0),
	}, nil
}

// Validate checks a code and, on success, exchanges it for a single-use
// session token bound to the action and destination.
func (s *Service) Validate(ctx context.Context, in ValidateInput) (*Session, error) {
	destination := strings.TrimSpace(in.Destination)
	if destination == "" || strings.TrimSpace(in.Code) == "" || !knownActions[in.Action] {
		return nil, ErrOTPInvalidInput
	}
	if !strings.Contains(destination, "@") {
		destination = NormalizePhone(destination)
	} else {
		destination = strings.ToLower(destination)
	}
	cfg := s.settings(ctx)

	codeKey := key("code", in.Action, destination)
	raw, err := s.store.Get(ctx, codeKey)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrOTPNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}

	// The counter is taken before the hash compare so parallel guesses
	// cannot all pass the limit.
	attemptsKey := key("attempts", in.Action, destination)
	attempts, err := s.store.Incr(ctx, attemptsKey)
	if err != nil {
		return nil, err
	}
	if attempts == 1 {
		if _, err := s.store.Expire(ctx, attemptsKey, seconds(cfg.ExpirySeconds)); err != nil {
			return nil, err
		}
	}
	if attempts > cfg.MaxValidate {
		return nil, ErrOTPMaxValidate
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.Hash), []byte(strings.TrimSpace(in.Code))) != nil {
		return nil, ErrOTPInvalid
	}

	// Only one caller can consume a given code.
	if _, err := s.store.GetDel(ctx, codeKey); errors.Is(err, cache.ErrMiss) {
		return nil, ErrOTPNotFound
	} else if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, attemptsKey); err != nil {
		return nil, err
	}
	token := uuid.NewString()
	session, err := json.Marshal(sessionRecord{Action: in.Action, Destination: destination})
	if err != nil {
		return nil, err
	}
	ttl := seconds(cfg.SessionTTLSeconds)
	if err := s.store.Set(ctx, "otp:session:"+token, session, ttl); err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: s.now().Add(ttl)}, nil
}

// ConsumeSession redeems a session token once and returns the destination it
// was issued for.
func (s *Service) ConsumeSession(ctx context.Context, token, action string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrOTPSessionInvalid
	}
	raw, err := s.store.GetDel(ctx, "otp:session:"+token)
	if errors.Is(err, cache.ErrMiss) {
		return "", ErrOTPSessionInvalid
	}
	if err != nil {
		return "", err
	}
	var sess sessionRecord
	if err := json.Unmarshal(raw, &sess); err != nil {
		return "", err
	}
	if sess.Action != action {
		return "", ErrOTPSessionInvalid
	}
	return sess.Destination, nil
}

func normalizeDestination(channel, destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	switch channel {
	case notify.ChannelSMS:
		if !phonePattern.MatchString(destination) {
			return "", ErrOTPInvalidInput
		}
		return NormalizePhone(destination), nil
	case notify.ChannelEmail:
		addr, err := mail.ParseAddress(destination)
		if err != nil || addr.Address != destination {
			return "", ErrOTPInvalidInput
		}
		return strings.ToLower(destination), nil
	}
	return "", ErrOTPInvalidInput
}

// NormalizePhone rewrites Indonesian mobile numbers to the +62 form.
func NormalizePhone(phone string) string {
	switch {
	case strings.HasPrefix(phone, "+62"):
		return phone
	case strings.HasPrefix(phone, "62"):
		return "+" + phone
	case strings.HasPrefix(phone, "0"):
		return "+62" + phone[1:]
	}
	return phone
}

func generateCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

func key(kind, action, destination string) string {
	return "otp:" + kind + ":" + action + ":" + destination
}

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}
