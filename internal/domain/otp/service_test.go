package otp_test

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/julo/lendcore/internal/cache"
	"github.com/julo/lendcore/internal/domain/otp"
	"github.com/julo/lendcore/internal/notify"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

type captureSender struct {
	messages []notify.Message
}

func (c *captureSender) Send(_ context.Context, msg notify.Message) error {
	c.messages = append(c.messages, msg)
	return nil
}

func (c *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, c.messages)
	code := codePattern.FindString(c.messages[len(c.messages)-1].Body)
	require.NotEmpty(t, code)
	return code
}

type staticFeatures struct {
	params string
}

func (f staticFeatures) Params(_ context.Context, _ string, out any) error {
	return json.Unmarshal([]byte(f.params), out)
}

func setup(t *testing.T, params string) (*otp.Service, *miniredis.Miniredis, *captureSender) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sms := &captureSender{}
	svc := otp.NewService(cache.NewStore(client), staticFeatures{params: params}, map[string]otp.Sender{
		notify.ChannelSMS:   sms,
		notify.ChannelEmail: &captureSender{},
	})
	return svc, mr, sms
}

func smsRequest() otp.RequestInput {
	return otp.RequestInput{Destination: "081234567890", Channel: notify.ChannelSMS, Action: otp.ActionRegister}
}

func TestRequestSendsCodeAndTracksQuota(t *testing.T) {
	svc, mr, sms := setup(t, `{}`)
	ctx := context.Background()

	res, err := svc.Request(ctx, smsRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, int64(2), res.RemainingRequests)
	assert.WithinDuration(t, res.ExpiresAt.Add(-4*time.Minute), res.ResendAt, time.Second)

	require.Len(t, sms.messages, 1)
	assert.Equal(t, "+6281234567890", sms.messages[0].To)
	sms.lastCode(t)

	assert.True(t, mr.Exists("otp:code:register:+6281234567890"))
	assert.Equal(t, 30*time.Minute, mr.TTL("otp:count:register:+6281234567890"))
}

func TestRequestResendGuardAndMaxRequest(t *testing.T) {
	svc, mr, _ := setup(t, `{}`)
	ctx := context.Background()

	_, err := svc.Request(ctx, smsRequest())
	require.NoError(t, err)

	_, err = svc.Request(ctx, smsRequest())
	assert.ErrorIs(t, err, otp.ErrOTPResendTooSoon)

	mr.FastForward(61 * time.Second)
	res, err := svc.Request(ctx, smsRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RemainingRequests)

	mr.FastForward(61 * time.Second)
	_, err = svc.Request(ctx, smsRequest())
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)
	_, err = svc.Request(ctx, smsRequest())
	assert.ErrorIs(t, err, otp.ErrOTPMaxRequest)
}

func TestRequestRejectsBadInput(t *testing.T) {
	svc, _, _ := setup(t, `{}`)
	ctx := context.Background()

	cases := []otp.RequestInput{
		{Destination: "12345", Channel: notify.ChannelSMS, Action: otp.ActionRegister},
		{Destination: "not-an-email", Channel: notify.ChannelEmail, Action: otp.ActionRegister},
		{Destination: "081234567890", Channel: "pigeon", Action: otp.ActionRegister},
		{Destination: "081234567890", Channel: notify.ChannelSMS, Action: "transfer"},
	}
	for _, in := range cases {
		_, err := svc.Request(ctx, in)
		assert.ErrorIs(t, err, otp.ErrOTPInvalidInput, "input %+v", in)
	}
}

func TestValidateIssuesSingleUseSession(t *testing.T) {
	svc, mr, sms := setup(t, `{}`)
	ctx := context.Background()

	_, err := svc.Request(ctx, smsRequest())
	require.NoError(t, err)

	session, err := svc.Validate(ctx, otp.ValidateInput{Destination: "+6281234567890", Action: otp.ActionRegister, Code: sms.lastCode(t)})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.False(t, mr.Exists("otp:code:register:+6281234567890"))

	_, err = svc.ConsumeSession(ctx, session.Token, otp.ActionResetPIN)
	assert.ErrorIs(t, err, otp.ErrOTPSessionInvalid)
	_, err = svc.ConsumeSession(ctx, session.Token, otp.ActionRegister)
	assert.ErrorIs(t, err, otp.ErrOTPSessionInvalid, "wrong action still consumes the token")
}

func TestConsumeSessionReturnsDestination(t *testing.T) {
	svc, _, sms := setup(t, `{}`)
	ctx := context.Background()

	_, err := svc.Request(ctx, smsRequest())
	require.NoError(t, err)
	session, err := svc.Validate(ctx, otp.ValidateInput{Destination: "081234567890", Action: otp.ActionRegister, Code: sms.lastCode(t)})
	require.NoError(t, err)

	dest, err := svc.ConsumeSession(ctx, session.Token, otp.ActionRegister)
	require.NoError(t, err)
	assert.Equal(t, "+6281234567890", dest)

	_, err = svc.ConsumeSession(ctx, session.Token, otp.ActionRegister)
	assert.ErrorIs(t, err, otp.ErrOTPSessionInvalid)
}

func TestValidateCountsFailedAttempts(t *testing.T) {
	svc, mr, sms := setup(t, `{"max_validate": 2}`)
	ctx := context.Background()

	_, err := svc.Request(ctx, smsRequest())
	require.NoError(t, err)
	code := sms.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	in := otp.ValidateInput{Destination: "081234567890", Action: otp.ActionRegister, Code: wrong}

	_, err = svc.Validate(ctx, in)
	assert.ErrorIs(t, err, otp.ErrOTPInvalid)
	ttl := mr.TTL("otp:code:register:+6281234567890")
	assert.Greater(t, ttl, time.Duration(0), "failed attempts keep the expiry")

	_, err = svc.Validate(ctx, in)
	assert.ErrorIs(t, err, otp.ErrOTPInvalid)

	in.Code = code
	_, err = svc.Validate(ctx, in)
	assert.ErrorIs(t, err, otp.ErrOTPMaxValidate)
}

func TestValidateCapsParallelGuesses(t *testing.T) {
	svc, mr, sms := setup(t, `{}`)
	ctx := context.Background()

	_, err := svc.Request(ctx, smsRequest())
	require.NoError(t, err)
	code := sms.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	var compared, capped atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Validate(ctx, otp.ValidateInput{Destination: "081234567890", Action: otp.ActionRegister, Code: wrong})
			switch {
			case errors.Is(err, otp.ErrOTPInvalid):
				compared.Add(1)
			case errors.Is(err, otp.ErrOTPMaxValidate):
				capped.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), compared.Load(), "only max_validate guesses reach the hash")
	assert.Equal(t, int32(17), capped.Load())

	_, err = svc.Validate(ctx, otp.ValidateInput{Destination: "081234567890", Action: otp.ActionRegister, Code: code})
	assert.ErrorIs(t, err, otp.ErrOTPMaxValidate)

	mr.FastForward(61 * time.Second)
	_, err = svc.Request(ctx, smsRequest())
	require.NoError(t, err)
	session, err := svc.Validate(ctx, otp.ValidateInput{Destination: "081234567890", Action: otp.ActionRegister, Code: sms.lastCode(t)})
	require.NoError(t, err, "a new code starts a fresh attempt budget")
	assert.NotEmpty(t, session.Token)
	assert.False(t, mr.Exists("otp:attempts:register:+6281234567890"))
}

func TestValidateParallelCorrectCodeIssuesOneSession(t *testing.T) {
	svc, _, sms := setup(t, `{"max_validate": 5}`)
	ctx := context.Background()

	_, err := svc.Request(ctx, smsRequest())
	require.NoError(t, err)
	in := otp.ValidateInput{Destination: "081234567890", Action: otp.ActionRegister, Code: sms.lastCode(t)}

	var sessions atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Validate(ctx, in); err == nil {
				sessions.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), sessions.Load())
}

func TestValidateExpiredOTP(t *testing.T) {
	svc, mr, sms := setup(t, `{"expiry_seconds": 60}`)
	ctx := context.Background()

	_, err := svc.Request(ctx, smsRequest())
	require.NoError(t, err)
	code := sms.lastCode(t)

	mr.FastForward(2 * time.Minute)
	_, err = svc.Validate(ctx, otp.ValidateInput{Destination: "081234567890", Action: otp.ActionRegister, Code: code})
	assert.ErrorIs(t, err, otp.ErrOTPNotFound)
}
