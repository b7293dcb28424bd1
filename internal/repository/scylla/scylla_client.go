package scylla

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"creator-auth/internal/config"
	"creator-auth/internal/util"
)

const createCommitmentsTable = `
CREATE TABLE IF NOT EXISTS otp_commitments (
	email        text PRIMARY KEY,
	code_digest  text,
	expires_at   timestamp,
	last_sent_at timestamp
)`

// Statements holds the CQL the commitment repository runs. gocql prepares each one on
// first use and caches it per connection.
type Statements struct {
	UpsertCommitment string
	GetCommitment    string
	DeleteCommitment string
}

var statements = Statements{
	UpsertCommitment: `INSERT INTO otp_commitments (email, code_digest, expires_at, last_sent_at)
        VALUES (?, ?, ?, ?) USING TTL ?`,
	GetCommitment: `SELECT email, code_digest, expires_at, last_sent_at
        FROM otp_commitments WHERE email = ?`,
	DeleteCommitment: `DELETE FROM otp_commitments WHERE email = ?`,
}

type ScyllaClient struct {
	Session    *gocql.Session
	config     *config.ScyllaConfig
	Statements Statements
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 100
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
		NumRetries: 3,
	}

	if !cfg.IsDevelopment() {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 getEnv("SCYLLA_TLS_CA_FILE", "/app/certs/ca.pem"),
			CertPath:               getEnv("SCYLLA_TLS_CERT_FILE", "/app/certs/scylla.pem"),
			KeyPath:                getEnv("SCYLLA_TLS_KEY_FILE", "/app/certs/scylla.key"),
			EnableHostVerification: true,
		}
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session:    session,
		config:     &scyllaConfig,
		Statements: statements,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := session.Query(createCommitmentsTable).WithContext(ctx).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create otp_commitments table: %w", err)
	}

	logger.Info("ScyllaDB client initialized",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(ctx context.Context, stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...).WithContext(ctx)
}

func (s *ScyllaClient) HealthCheck(ctx context.Context) error {
	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", util.String("cluster_name", clusterName))
	return nil
}

// ExecuteWithRetry retries query up to maxRetries times with a linear backoff, stopping
// early when ctx is done.
func (s *ScyllaClient) ExecuteWithRetry(ctx context.Context, query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if lastErr = query.Exec(); lastErr == nil {
			return nil
		}
		if i < maxRetries && !sleepCtx(ctx, time.Duration(i+1)*100*time.Millisecond) {
			return ctx.Err()
		}
	}
	return lastErr
}

// ScanWithRetry is ExecuteWithRetry for single-row reads. gocql.ErrNotFound is returned
// immediately.
func (s *ScyllaClient) ScanWithRetry(ctx context.Context, query *gocql.Query, dest ...interface{}) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		lastErr = query.Scan(dest...)
		if lastErr == nil || lastErr == gocql.ErrNotFound {
			return lastErr
		}
		if i < 2 && !sleepCtx(ctx, time.Duration(i+1)*100*time.Millisecond) {
			return ctx.Err()
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
