package persist

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultEtcdTimeout bounds each etcd request when the caller's context has no deadline.
const DefaultEtcdTimeout = 5 * time.Second

// EtcdStore is a Store backed by etcd v3. Every key is stored under Namespace,
// e.g. /mini-thrift/ + "user:FIELD_0001".
type EtcdStore struct {
	client    *clientv3.Client // thread-safe, shared across goroutines
	namespace string
	timeout   time.Duration
	owned     bool
}

var _ Store = (*EtcdStore)(nil)

// NewEtcdStore connects to the given endpoints.
func NewEtcdStore(endpoints []string, namespace string, dialTimeout time.Duration) (*EtcdStore, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "persist: connect etcd %v", endpoints)
	}
	s := NewEtcdStoreFromClient(c, namespace)
	s.owned = true
	return s, nil
}

// NewEtcdStoreFromClient uses an existing client; Close leaves it open.
func NewEtcdStoreFromClient(c *clientv3.Client, namespace string) *EtcdStore {
	return &EtcdStore{client: c, namespace: namespace, timeout: DefaultEtcdTimeout}
}

func (s *EtcdStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *EtcdStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	resp, err := s.client.Get(ctx, s.namespace+key)
	if err != nil {
		return "", false, errors.Wrapf(err, "persist: etcd get %q", key)
	}
	if len(resp.Kvs) == 0 {
		return "", false, nil
	}
	return string(resp.Kvs[0].Value), true, nil
}

func (s *EtcdStore) Put(ctx context.Context, key, value string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.Put(ctx, s.namespace+key, value)
	return errors.Wrapf(err, "persist: etcd put %q", key)
}

func (s *EtcdStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.Delete(ctx, s.namespace+key)
	return errors.Wrapf(err, "persist: etcd delete %q", key)
}

func (s *EtcdStore) DeletePrefix(ctx context.Context, prefix string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.Delete(ctx, s.namespace+prefix, clientv3.WithPrefix())
	return errors.Wrapf(err, "persist: etcd delete prefix %q", prefix)
}

// Keys lists the stored keys under prefix, namespace stripped.
func (s *EtcdStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	resp, err := s.client.Get(ctx, s.namespace+prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "persist: etcd list %q", prefix)
	}
	keys := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		keys = append(keys, string(kv.Key)[len(s.namespace):])
	}
	return keys, nil
}

// Close closes the client if the store created it.
func (s *EtcdStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
