package relay_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonchat/backend/internal/engine"
	"anonchat/backend/internal/media"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/relay"
	"anonchat/backend/internal/storage"
)

// stubTransport is a scriptable in-memory relay client.
type stubTransport struct {
	userID     string
	delivered  []models.RelayMessage
	notices    []string
	deliverErr error
}

func (s *stubTransport) UserID() string { return s.userID }

func (s *stubTransport) Deliver(msg models.RelayMessage) error {
	if s.deliverErr != nil {
		return s.deliverErr
	}
	s.delivered = append(s.delivered, msg)
	return nil
}

func (s *stubTransport) Notify(text string) error {
	s.notices = append(s.notices, text)
	return nil
}

func newRelayFixture(t *testing.T) (*relay.Dispatcher, *engine.Engine) {
	t.Helper()
	store := storage.NewMemoryStore(5*time.Minute, 0)
	eng := engine.New(store, nil)
	mediaStore, err := media.NewStore(t.TempDir())
	require.NoError(t, err)
	return relay.NewDispatcher(eng, mediaStore), eng
}

func pairUsers(t *testing.T, eng *engine.Engine, a, b string) {
	t.Helper()
	ctx := context.Background()
	_, err := eng.RequestSearch(ctx, a)
	require.NoError(t, err)
	out, err := eng.RequestSearch(ctx, b)
	require.NoError(t, err)
	require.Equal(t, a, out.PartnerID)
}

func TestRelayNoPartner(t *testing.T) {
	d, _ := newRelayFixture(t)

	delivery, err := d.Relay(context.Background(), models.RelayMessage{
		SenderID: "lonely",
		Kind:     models.KindText,
		Content:  "hello?",
	})
	require.NoError(t, err)
	assert.Equal(t, relay.NoPartner, delivery.Result)
}

func TestRelayDelivered(t *testing.T) {
	d, eng := newRelayFixture(t)
	pairUsers(t, eng, "a", "b")

	bClient := &stubTransport{userID: "b"}
	d.Register(bClient)

	delivery, err := d.Relay(context.Background(), models.RelayMessage{
		SenderID: "a",
		Kind:     models.KindText,
		Content:  "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, relay.Delivered, delivery.Result)
	require.Len(t, bClient.delivered, 1)
	assert.Equal(t, "hi", bClient.delivered[0].Content)
}

func TestRelayDeliveryFailureTearsDown(t *testing.T) {
	d, eng := newRelayFixture(t)
	pairUsers(t, eng, "a", "b")

	bClient := &stubTransport{userID: "b", deliverErr: errors.New("socket gone")}
	d.Register(bClient)

	delivery, err := d.Relay(context.Background(), models.RelayMessage{
		SenderID: "a",
		Kind:     models.KindText,
		Content:  "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, relay.DeliveryFailed, delivery.Result)
	assert.Equal(t, "b", delivery.FormerPartner)

	// The pair is gone: both sides are free to search again.
	_, paired, _ := eng.Partner(context.Background(), "a")
	assert.False(t, paired)
	_, paired, _ = eng.Partner(context.Background(), "b")
	assert.False(t, paired)
}

func TestRelayUnreachablePartner(t *testing.T) {
	d, eng := newRelayFixture(t)
	pairUsers(t, eng, "a", "b")
	// b never registered a client.

	delivery, err := d.Relay(context.Background(), models.RelayMessage{
		SenderID: "a",
		Kind:     models.KindText,
		Content:  "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, relay.DeliveryFailed, delivery.Result)
	assert.Equal(t, "b", delivery.FormerPartner)
}

func TestRelayPersistsMedia(t *testing.T) {
	store := storage.NewMemoryStore(5*time.Minute, 0)
	eng := engine.New(store, nil)
	dir := t.TempDir()
	mediaStore, err := media.NewStore(dir)
	require.NoError(t, err)
	d := relay.NewDispatcher(eng, mediaStore)

	pairUsers(t, eng, "a", "b")
	d.Register(&stubTransport{userID: "b"})

	delivery, err := d.Relay(context.Background(), models.RelayMessage{
		SenderID:     "a",
		Kind:         models.KindPhoto,
		Sequence:     7,
		OriginalName: "cat.jpg",
		Data:         strings.NewReader("jpegbytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, relay.Delivered, delivery.Result)
	require.NoError(t, delivery.PersistErr)
	assert.Equal(t, filepath.Join(dir, "photos", "a_7_cat.jpg"), delivery.SavedPath)

	data, err := os.ReadFile(delivery.SavedPath)
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(data))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("upstream read failed") }

func TestRelayPersistFailureStillDelivers(t *testing.T) {
	d, eng := newRelayFixture(t)
	pairUsers(t, eng, "a", "b")

	bClient := &stubTransport{userID: "b"}
	d.Register(bClient)

	delivery, err := d.Relay(context.Background(), models.RelayMessage{
		SenderID:     "a",
		Kind:         models.KindPhoto,
		Sequence:     1,
		OriginalName: "cat.jpg",
		Data:         failingReader{},
	})
	require.NoError(t, err)
	assert.Equal(t, relay.Delivered, delivery.Result)
	assert.Error(t, delivery.PersistErr)
	assert.Len(t, bClient.delivered, 1, "persistence failure must not block forwarding")
}

func TestRegisterUnregister(t *testing.T) {
	d, _ := newRelayFixture(t)

	c1 := &stubTransport{userID: "u"}
	d.Register(c1)
	assert.Equal(t, 1, d.ClientCount())

	// A newer client replaces the old one; unregistering the stale
	// handle must not evict the replacement.
	c2 := &stubTransport{userID: "u"}
	d.Register(c2)
	d.Unregister(c1)

	got, ok := d.Client("u")
	require.True(t, ok)
	assert.Same(t, c2, got.(*stubTransport))

	d.Unregister(c2)
	assert.Equal(t, 0, d.ClientCount())
}

func TestNotifyUser(t *testing.T) {
	d, _ := newRelayFixture(t)

	assert.False(t, d.NotifyUser("absent", "hello"))

	c := &stubTransport{userID: "u"}
	d.Register(c)
	assert.True(t, d.NotifyUser("u", "hello"))
	assert.Equal(t, []string{"hello"}, c.notices)
}
