package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreAppendKeepsArrivalOrderAndDuplicates(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Append(Message{Author: "a", Body: "1", ReceivedAt: now})
	s.Append(Message{Author: "b", Body: "2", ReceivedAt: now})
	s.Append(Message{Author: "a", Body: "1", ReceivedAt: now})

	got := s.All()
	require.Len(t, got, 3)
	require.Equal(t, 3, s.Len())
	require.Equal(t, got[0], got[2])
	require.Equal(t, "b", got[1].Author)
}

func TestStoreAllReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Append(Message{Author: "a", Body: "1"})

	snapshot := s.All()
	snapshot[0].Body = "tampered"
	require.Equal(t, "1", s.All()[0].Body)
}

func TestStoreSubscribersSeeTheWrite(t *testing.T) {
	s := NewStore()
	var order []string
	s.Subscribe(func(m Message) {
		order = append(order, "first:"+m.Body)
		require.Equal(t, m, s.All()[s.Len()-1])
	})
	cancel := s.Subscribe(func(m Message) {
		order = append(order, "second:"+m.Body)
	})

	s.Append(Message{Author: "a", Body: "1"})
	cancel()
	s.Append(Message{Author: "a", Body: "2"})

	require.Equal(t, []string{"first:1", "second:1", "first:2"}, order)
}

func TestStoreConcurrentReaders(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.All()
				_ = s.Len()
			}
		}()
	}
	for i := 0; i < 100; i++ {
		s.Append(Message{Author: "a", Body: "x"})
	}
	wg.Wait()
	require.Equal(t, 100, s.Len())
}

func TestNewMessageValidates(t *testing.T) {
	_, err := NewMessage(" ", "hi", fixedNow)
	require.ErrorIs(t, err, ErrEmptyAuthor)

	_, err = NewMessage("bob", "", fixedNow)
	require.ErrorIs(t, err, ErrEmptyBody)

	msg, err := NewMessage("bob", " hi ", fixedNow)
	require.NoError(t, err)
	require.Equal(t, Message{Author: "bob", Body: " hi ", ReceivedAt: fixedNow}, msg)
}
