package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/BioDockViz/internal/infrastructure/storage/minio"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

// memRepo is an in-memory structure.Repository. WithTx runs fn directly.
type memRepo struct {
	mu           sync.Mutex
	structures   map[string]*structure.Structure
	atoms        map[string][]structure.Atom
	bonds        map[string][]structure.Bond
	interactions map[string][]structure.Interaction
	txCalls      int
}

func newMemRepo() *memRepo {
	return &memRepo{
		structures:   map[string]*structure.Structure{},
		atoms:        map[string][]structure.Atom{},
		bonds:        map[string][]structure.Bond{},
		interactions: map[string][]structure.Interaction{},
	}
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeStructureNotFound, "structure not found").WithDetail(id)
}

func (r *memRepo) Create(_ context.Context, s *structure.Structure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.structures {
		if existing.FileHash == s.FileHash {
			return errors.New(errors.ErrCodeStructureAlreadyExists, "structure already exists")
		}
	}
	cp := *s
	r.structures[s.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*structure.Structure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.structures[id]
	if !ok {
		return nil, notFound(id)
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) GetByHash(_ context.Context, hash string) (*structure.Structure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.structures {
		if s.FileHash == hash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, notFound(hash)
}

func (r *memRepo) List(_ context.Context, opts structure.ListOptions) ([]*structure.Structure, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*structure.Structure
	for _, s := range r.structures {
		if opts.FileType != "" && s.FileType != opts.FileType {
			continue
		}
		if opts.Stage != "" && s.Stage != opts.Stage {
			continue
		}
		cp := *s
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if opts.Offset >= len(all) {
		return []*structure.Structure{}, total, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, total, nil
}

func (r *memRepo) update(id string, fn func(*structure.Structure)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.structures[id]
	if !ok {
		return notFound(id)
	}
	fn(s)
	return nil
}

func (r *memRepo) UpdateStage(_ context.Context, id string, stage structure.Stage) error {
	return r.update(id, func(s *structure.Structure) { s.Stage = stage })
}

func (r *memRepo) UpdateParseResult(_ context.Context, id string, meta *structure.ParseMetadata, atomCount, bondCount int) error {
	return r.update(id, func(s *structure.Structure) {
		s.Metadata = meta
		s.AtomCount = atomCount
		s.BondCount = bondCount
		s.Stage = structure.StageParsed
	})
}

func (r *memRepo) UpdateAnalysis(_ context.Context, id string, summary *structure.AnalysisSummary, bondCount int) error {
	return r.update(id, func(s *structure.Structure) {
		s.Analysis = summary
		s.BondCount = bondCount
		s.Stage = structure.StageAnalyzed
	})
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.structures[id]; !ok {
		return notFound(id)
	}
	delete(r.structures, id)
	delete(r.atoms, id)
	delete(r.bonds, id)
	delete(r.interactions, id)
	return nil
}

func (r *memRepo) ReplaceAtoms(_ context.Context, id string, atoms []structure.Atom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.atoms[id] = append([]structure.Atom(nil), atoms...)
	return nil
}

func (r *memRepo) ListAtoms(_ context.Context, id string) ([]structure.Atom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]structure.Atom(nil), r.atoms[id]...), nil
}

func (r *memRepo) ReplaceBonds(_ context.Context, id string, bonds []structure.Bond) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bonds[id] = append([]structure.Bond(nil), bonds...)
	return nil
}

func (r *memRepo) ListBonds(_ context.Context, id string) ([]structure.Bond, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]structure.Bond(nil), r.bonds[id]...), nil
}

func (r *memRepo) ReplaceInteractions(_ context.Context, id string, list []structure.Interaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interactions[id] = append([]structure.Interaction(nil), list...)
	return nil
}

func (r *memRepo) ListInteractions(_ context.Context, id string, kind structure.InteractionKind) ([]structure.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []structure.Interaction
	for _, in := range r.interactions[id] {
		if kind == "" || in.Kind == kind {
			out = append(out, in)
		}
	}
	return out, nil
}

func (r *memRepo) WithTx(_ context.Context, fn func(structure.Repository) error) error {
	r.mu.Lock()
	r.txCalls++
	r.mu.Unlock()
	return fn(r)
}

func (r *memRepo) transactions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txCalls
}

// memObjects is an in-memory minio.ObjectRepository.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (o *memObjects) Upload(_ context.Context, key string, data []byte, contentType string, _ map[string]string) (*minio.UploadResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = append([]byte(nil), data...)
	o.types[key] = contentType
	return &minio.UploadResult{Bucket: minio.DefaultBucket, ObjectKey: key, Size: int64(len(data)), UploadedAt: time.Now()}, nil
}

func (o *memObjects) Download(_ context.Context, key string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, minio.ErrObjectNotFound.WithDetail(key)
	}
	return data, nil
}

func (o *memObjects) Exists(_ context.Context, key string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.objects[key]
	return ok, nil
}

func (o *memObjects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	return nil
}

func (o *memObjects) PresignedGetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + minio.DefaultBucket + "/" + key, nil
}

func (o *memObjects) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

// mockPublisher is a testify mock of EventPublisher.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishEvent(ctx context.Context, topic, key string, env *kafka.EventEnvelope) error {
	return m.Called(ctx, topic, key, env).Error(0)
}

func (m *mockPublisher) topics() []string {
	var out []string
	for _, c := range m.Calls {
		out = append(out, c.Arguments.String(1))
	}
	return out
}

func (m *mockPublisher) envelope(topic string) *kafka.EventEnvelope {
	for _, c := range m.Calls {
		if c.Arguments.String(1) == topic {
			return c.Arguments.Get(3).(*kafka.EventEnvelope)
		}
	}
	return nil
}

// pdbAtom renders a fixed-column ATOM record.
func pdbAtom(serial int, name, res string, seq int, x, y, z float64, elem string) string {
	return fmt.Sprintf("%-6s%5d %-4s%1s%3s %1s%4d%1s   %8.3f%8.3f%8.3f%6.2f%6.2f          %2s%2s",
		"ATOM", serial, name, "", res, "A", seq, "", x, y, z, 1.0, 10.0, elem, "")
}

// saltBridgePDB holds a LYS nitrogen 3 Å from an ASP oxygen: one salt bridge,
// one vdW contact and no covalent bond.
func saltBridgePDB() []byte {
	return []byte(strings.Join([]string{
		"HEADER    TEST COMPLEX",
		"TITLE     SALT BRIDGE",
		pdbAtom(1, " NZ ", "LYS", 1, 0, 0, 0, "N"),
		pdbAtom(2, " OD1", "ASP", 2, 3.0, 0, 0, "O"),
		"END",
	}, "\n") + "\n")
}

// backbonePDB holds an N-CA pair at bonding distance without CONECT records.
func backbonePDB() []byte {
	return []byte(strings.Join([]string{
		"HEADER    BACKBONE",
		pdbAtom(1, " N  ", "ALA", 1, 0, 0, 0, "N"),
		pdbAtom(2, " CA ", "ALA", 1, 1.458, 0, 0, "C"),
		"END",
	}, "\n") + "\n")
}
