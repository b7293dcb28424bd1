package encryption

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"creator-auth/internal/config"
	"creator-auth/internal/util"
)

var ErrDecryptionFailed = errors.New("decryption failed")

// Decrypter is the slice of the KMS API the resolver needs.
type Decrypter interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// SecretResolver turns KMS ciphertexts in the auth config into plaintext secrets.
type SecretResolver struct {
	kms   Decrypter
	keyID string
}

// NewKMSClient builds a KMS client from the default AWS credential chain.
func NewKMSClient(ctx context.Context, cfg config.KMSConfig) (*kms.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return kms.NewFromConfig(awsCfg), nil
}

func NewSecretResolver(client Decrypter, keyID string) *SecretResolver {
	return &SecretResolver{kms: client, keyID: keyID}
}

// Resolve replaces cfg.Auth.OTPSecret and cfg.Auth.SessionSecret with their decrypted
// values. Any failure is a configuration error; the process must not start with a secret
// it could not read.
func (r *SecretResolver) Resolve(ctx context.Context, cfg *config.Config) error {
	otpSecret, err := r.decrypt(ctx, "OTP_SECRET", cfg.Auth.OTPSecret)
	if err != nil {
		return err
	}
	sessionSecret, err := r.decrypt(ctx, "SESSION_SECRET", cfg.Auth.SessionSecret)
	if err != nil {
		return err
	}

	cfg.Auth.OTPSecret = otpSecret
	cfg.Auth.SessionSecret = sessionSecret

	util.Info("Auth secrets resolved through KMS", util.String("key_id", r.keyID))
	return nil
}

func (r *SecretResolver) decrypt(ctx context.Context, name, encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil || len(blob) == 0 {
		return "", &config.ConfigurationError{Reason: fmt.Sprintf("%s is not a base64 KMS ciphertext", name)}
	}

	input := &kms.DecryptInput{CiphertextBlob: blob}
	if r.keyID != "" {
		input.KeyId = aws.String(r.keyID)
	}

	out, err := r.kms.Decrypt(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", config.ErrConfiguration, name, errors.Join(ErrDecryptionFailed, err))
	}
	if len(out.Plaintext) == 0 {
		return "", &config.ConfigurationError{Reason: fmt.Sprintf("%s decrypted to an empty secret", name)}
	}
	return string(out.Plaintext), nil
}
