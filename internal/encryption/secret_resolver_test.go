package encryption

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-auth/internal/config"
)

// fakeKMS "decrypts" by stripping an enc: prefix.
type fakeKMS struct {
	keyIDs []string
	err    error
}

func (f *fakeKMS) Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.keyIDs = append(f.keyIDs, aws.ToString(params.KeyId))
	if f.err != nil {
		return nil, f.err
	}
	blob := string(params.CiphertextBlob)
	if len(blob) < 4 || blob[:4] != "enc:" {
		return nil, errors.New("InvalidCiphertextException")
	}
	return &kms.DecryptOutput{Plaintext: []byte(blob[4:])}, nil
}

func ciphertext(plain string) string {
	return base64.StdEncoding.EncodeToString([]byte("enc:" + plain))
}

func TestResolveDecryptsBothSecrets(t *testing.T) {
	fake := &fakeKMS{}
	cfg := &config.Config{Auth: config.AuthConfig{
		OTPSecret:     ciphertext("otp-secret"),
		SessionSecret: ciphertext("session-secret"),
	}}

	require.NoError(t, NewSecretResolver(fake, "alias/creator-auth").Resolve(context.Background(), cfg))
	assert.Equal(t, "otp-secret", cfg.Auth.OTPSecret)
	assert.Equal(t, "session-secret", cfg.Auth.SessionSecret)
	assert.Equal(t, []string{"alias/creator-auth", "alias/creator-auth"}, fake.keyIDs)
}

func TestResolveRejectsNonBase64(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{OTPSecret: "plain text!", SessionSecret: ciphertext("s")}}

	err := NewSecretResolver(&fakeKMS{}, "").Resolve(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.Equal(t, "plain text!", cfg.Auth.OTPSecret)
}

func TestResolveKMSFailureIsConfigurationError(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{OTPSecret: ciphertext("a"), SessionSecret: ciphertext("b")}}

	err := NewSecretResolver(&fakeKMS{err: errors.New("AccessDenied")}, "").Resolve(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}
