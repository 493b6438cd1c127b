package backend

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/simbridge/internal/assets"
	"github.com/OCAP2/simbridge/internal/codec"
	"github.com/OCAP2/simbridge/internal/command"
	"github.com/OCAP2/simbridge/internal/dispatcher"
	"github.com/OCAP2/simbridge/internal/scene"
	"github.com/OCAP2/simbridge/internal/telemetry"
	"github.com/OCAP2/simbridge/pkg/core"
	"github.com/OCAP2/simbridge/pkg/streaming"
)

func newTestServer(t *testing.T) (*Server, *Store) {
	t.Helper()
	store := NewStore(assets.Default(), testOrigin)
	svc := NewService(store, nil)

	d, err := dispatcher.New(svc.logger)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	svc.RegisterHandlers(d)

	return NewServer(d, "", nil), store
}

func request(t *testing.T, verb string, args ...any) []byte {
	t.Helper()
	req, err := streaming.NewRequest(verb, args...)
	require.NoError(t, err)
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return data
}

func text(t *testing.T, v any) string {
	t.Helper()
	s, err := codec.EncodeString(v)
	require.NoError(t, err)
	return s
}

func TestServer_RegistersEveryVerb(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, verb := range scene.Verbs().Names() {
		assert.True(t, srv.Dispatcher().HasHandler(verb), verb)
	}
	assert.True(t, srv.Dispatcher().HasHandler(ApplySnapshotCommand))
}

func TestServer_ServeTypedReply(t *testing.T) {
	srv, _ := newTestServer(t)

	reply := srv.Serve(request(t, scene.VerbSpawnTransform, assets.F16, "lead", text(t, at(1, 2, 3))))
	assert.Empty(t, reply, "void verbs reply with empty text")

	reply = srv.Serve(request(t, scene.VerbGetTransform, "lead"))
	tr, err := codec.Decode[core.Transform](reply)
	require.NoError(t, err)
	assert.Equal(t, core.Vector3{X: 1, Y: 2, Z: 3}, tr.Position)

	reply = srv.Serve(request(t, scene.VerbGetPosition, "lead", ""))
	v, err := codec.Decode[core.Vector3](reply)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v.Z)

	reply = srv.Serve(request(t, scene.VerbAssetsLibrary))
	list, err := codec.Decode[[]string](reply)
	require.NoError(t, err)
	assert.Contains(t, list, assets.F16)
}

func TestServer_FailuresReplyEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Empty(t, srv.Serve([]byte("not json")))
	assert.Empty(t, srv.Serve(request(t, "Teleport", "lead")))
	assert.Empty(t, srv.Serve(request(t, scene.VerbGetTransform, "ghost")))
	assert.Empty(t, srv.Serve(request(t, scene.VerbGetTransform)))
	assert.Empty(t, srv.Serve(request(t, scene.VerbCheckConnection)))
}

func TestServer_NumericArguments(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.Spawn(assets.F16, "lead", at(0, 0, 0)))

	srv.Serve(request(t, scene.VerbFreeze, "lead", "lead.clone[1]", -1.0))
	srv.Serve(request(t, scene.VerbDrawAxes, text(t, at(0, 0, 0)), 0.1, 10.0, "lead.axes.1", "lead", 30.0, true))

	assert.Contains(t, store.Names(), "lead.clone[1]")
	assert.Equal(t, []string{"lead.axes.1"}, store.Markers())
}

func TestServer_OverWebSocket(t *testing.T) {
	srv, store := newTestServer(t)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	t.Cleanup(func() { _ = srv.Close() })

	tr, err := command.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+streaming.CommandPath, nil)
	require.NoError(t, err)
	ch, err := command.New(tr, scene.Verbs(), codec.DefaultRegistry(), command.Config{Timeout: time.Second}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	_, err = ch.Call(scene.VerbSpawnGeo, assets.Glider01, "glider", testOrigin)
	require.NoError(t, err)
	assert.Contains(t, store.Names(), "glider")

	g, err := command.CallAs[core.GeoCoordinate](ch, scene.VerbGetGeo, "glider")
	require.NoError(t, err)
	assert.InDelta(t, testOrigin.Latitude, g.Latitude, 1e-9)

	_, err = ch.Call(scene.VerbGetTransform, "ghost")
	assert.ErrorIs(t, err, codec.ErrFormat)
}

func TestListen(t *testing.T) {
	svc := NewService(NewStore(assets.Default(), testOrigin), nil)
	srv, err := Listen("127.0.0.1:0", svc, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, srv.Addr())
	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())
}

func TestFollow_AppliesNewestTelemetry(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.Spawn(assets.F16, "lead", at(0, 0, 0)))

	pub := telemetry.NewPublisher(telemetry.PublisherConfig{}, nil)
	require.NoError(t, pub.Bind("127.0.0.1:0"))
	t.Cleanup(func() { _ = pub.Close() })

	sub := telemetry.NewSubscriber(telemetry.SubscriberConfig{Backoff: 20 * time.Millisecond}, nil)
	require.NoError(t, sub.Connect(pub.Addr()))
	sub.StartListening()
	t.Cleanup(func() { _ = sub.Close() })

	require.Eventually(t, func() bool { return pub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go Follow(ctx, sub, srv.Dispatcher(), 10*time.Millisecond, nil)

	require.Eventually(t, func() bool {
		snap := core.NewSnapshot(float64(time.Now().UnixNano()), map[string]core.EntityState{
			"lead": {Latitude: 52, Longitude: 4, HeightM: 750},
		})
		_ = pub.Publish(snap)
		tr, err := store.Transform("lead")
		return err == nil && tr.Position.Y == 750
	}, 3*time.Second, 20*time.Millisecond)
}
