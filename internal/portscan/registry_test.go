package portscan

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLister returns one scripted result per call, repeating the last.
type scriptedLister struct {
	mu    sync.Mutex
	steps []func() ([]string, error)
	calls int
}

func (l *scriptedLister) List() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.calls
	if i >= len(l.steps) {
		i = len(l.steps) - 1
	}
	l.calls++
	return l.steps[i]()
}

func ports(names ...string) func() ([]string, error) {
	return func() ([]string, error) { return names, nil }
}

func TestPortSet(t *testing.T) {
	a := NewPortSet("B", "A")
	b := NewPortSet("A", "B", "A")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(NewPortSet("A")))
	assert.False(t, a.Equal(NewPortSet("A", "C")))
	assert.Equal(t, []string{"A", "B"}, a.Sorted())
}

func TestRegistry_ListErrorIsEmpty(t *testing.T) {
	r := NewRegistry(&scriptedLister{steps: []func() ([]string, error){
		func() ([]string, error) { return nil, errors.New("driver error") },
	}}, zerolog.Nop())

	assert.Empty(t, r.List())
}

func TestRegistry_WatchReportsOneChange(t *testing.T) {
	lister := &scriptedLister{steps: []func() ([]string, error){
		ports("A", "B"),
		ports("B", "A"),
		ports("A", "B", "C"),
	}}
	r := NewRegistry(lister, zerolog.Nop())

	changes := make(chan PortSet, 10)
	w := r.Watch(5*time.Millisecond, func(s PortSet) { changes <- s })

	select {
	case got := <-changes:
		assert.Equal(t, []string{"A", "B", "C"}, got.Sorted())
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}

	// later polls keep returning the same set
	time.Sleep(30 * time.Millisecond)
	require.True(t, w.Wait(time.Second))
	assert.Empty(t, changes)
}

func TestRegistry_WatchSurvivesEnumerationFailure(t *testing.T) {
	lister := &scriptedLister{steps: []func() ([]string, error){
		ports("A"),
		func() ([]string, error) { return nil, errors.New("driver error") },
		ports("A"),
	}}
	r := NewRegistry(lister, zerolog.Nop())

	var mu sync.Mutex
	var seen [][]string
	w := r.Watch(5*time.Millisecond, func(s PortSet) {
		mu.Lock()
		seen = append(seen, s.Sorted())
		mu.Unlock()
	})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, 2*time.Second, 5*time.Millisecond)
	require.True(t, w.Wait(time.Second))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{}, {"A"}}, seen)
}

func TestWatcher_WaitTimesOutWhenStuck(t *testing.T) {
	lister := &scriptedLister{steps: []func() ([]string, error){ports("A"), ports("B")}}
	r := NewRegistry(lister, zerolog.Nop())

	release := make(chan struct{})
	entered := make(chan struct{})
	w := r.Watch(time.Millisecond, func(PortSet) {
		close(entered)
		<-release
	})
	<-entered

	assert.False(t, w.Wait(20*time.Millisecond))
	close(release)
	assert.True(t, w.Wait(time.Second))
}
