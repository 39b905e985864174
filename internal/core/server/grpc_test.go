package server

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rolebind/internal/core/api"
	"github.com/solatis/rolebind/internal/core/auth"
	"github.com/solatis/rolebind/internal/core/config"
	"github.com/solatis/rolebind/internal/core/db"
	"github.com/solatis/rolebind/internal/core/telemetry"
	"github.com/solatis/rolebind/internal/resolve"
	"github.com/solatis/rolebind/internal/types"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecret = []byte("0123456789abcdef0123456789abcdef-secret")

type ServerTestSuite struct {
	suite.Suite
	server *GRPCServer
	conn   *grpc.ClientConn
	client *api.Client
	key    string
	other  string
}

func (s *ServerTestSuite) SetupTest() {
	ctx := context.Background()

	database, err := db.Open("sqlite://" + filepath.Join(s.T().TempDir(), "server.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { database.Close() })
	_, err = db.MigrateUp(database)
	s.Require().NoError(err)
	queries, err := db.LoadQueries(database)
	s.Require().NoError(err)

	_, err = queries.ReplaceCatalog(ctx, &types.Catalog{
		GuildID:         555,
		DefaultNickname: "{roblox-username}",
		Binds: []types.Bind{
			{ID: "members", Kind: types.BindGroup, Roles: []types.RoleID{10}, GroupID: 1000},
		},
	})
	s.Require().NoError(err)

	s.key = s.mint(queries, "k555", 555)
	s.other = s.mint(queries, "k777", 777)

	cfg := config.DefaultServerConfig()
	cfg.MetricsAddr = ""
	engine := resolve.NewEngine(resolve.DefaultConfig(), nil)
	metrics := telemetry.New()
	service, err := api.NewBindingService(queries, engine, metrics, nil)
	s.Require().NoError(err)
	authenticator := auth.NewAuthenticator(map[string][]byte{testSecretID: testSecret}, queries, PublicMethods()...)

	s.server, err = NewGRPCServer(cfg, service, authenticator, metrics, nil)
	s.Require().NoError(err)

	listener := bufconn.Listen(1 << 20)
	go func() { _ = s.server.Serve(listener) }()

	s.conn, err = grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	s.Require().NoError(err)
	s.client = api.NewClient(s.conn)
}

func (s *ServerTestSuite) TearDownTest() {
	s.conn.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.NoError(s.server.Shutdown(ctx))
}

func (s *ServerTestSuite) mint(queries *db.Queries, id string, guild types.GuildID) string {
	key, hash, err := auth.GenerateAPIKey(testSecretID, testSecret)
	s.Require().NoError(err)
	s.Require().NoError(queries.InsertAPIKey(context.Background(), db.APIKey{ID: id, GuildID: guild, SecretID: testSecretID}, hash))
	return key
}

func (s *ServerTestSuite) withKey(key string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), auth.MetadataKey, key)
}

func (s *ServerTestSuite) request(fields map[string]any) *structpb.Struct {
	req, err := structpb.NewStruct(fields)
	s.Require().NoError(err)
	return req
}

func (s *ServerTestSuite) TestResolveMember() {
	out, err := s.client.ResolveMember(s.withKey(s.key), s.request(map[string]any{
		"member": map[string]any{
			"discord_id":  "1209876543210987654",
			"roblox_name": "builder_bob",
			"ranks":       map[string]any{"1000": 3},
		},
	}))
	s.Require().NoError(err)

	fields := out.AsMap()
	s.Equal("resolved", fields["status"])
	s.Equal([]any{"10"}, fields["add_roles"])
	s.Equal("builder_bob", fields["nickname"])
}

func (s *ServerTestSuite) TestRequiresAPIKey() {
	_, err := s.client.ResolveMember(context.Background(), s.request(map[string]any{}))
	s.Equal(codes.Unauthenticated, status.Code(err))
}

// A key for a guild without a stored catalog cannot see another guild's catalog.
func (s *ServerTestSuite) TestKeysAreGuildScoped() {
	_, err := s.client.SyncCatalog(s.withKey(s.other), s.request(map[string]any{}))
	s.Equal(codes.NotFound, status.Code(err))

	out, err := s.client.SyncCatalog(s.withKey(s.key), s.request(map[string]any{}))
	s.Require().NoError(err)
	s.Equal("555", out.AsMap()["guild_id"])
}

func (s *ServerTestSuite) TestCheckExpression() {
	out, err := s.client.CheckExpression(s.withKey(s.key), s.request(map[string]any{"source": "not IsInGroup(1)"}))
	s.Require().NoError(err)
	s.Equal(true, out.AsMap()["valid"])
	s.Equal("not (IsInGroup(1))", out.AsMap()["canonical"])
}

func (s *ServerTestSuite) TestHealthIsPublic() {
	health := grpc_health_v1.NewHealthClient(s.conn)
	resp, err := health.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: api.ServiceName})
	s.Require().NoError(err)
	s.Equal(grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func (s *ServerTestSuite) TestNewGRPCServerValidation() {
	_, err := NewGRPCServer(nil, nil, nil, nil, nil)
	s.Error(err)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func TestTimeoutInterceptor(t *testing.T) {
	var deadline bool
	handler := func(ctx context.Context, _ any) (any, error) {
		_, deadline = ctx.Deadline()
		return nil, nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: api.MethodResolveMember}

	_, _ = timeoutInterceptor(time.Second)(context.Background(), nil, info, handler)
	if !deadline {
		t.Error("expected a deadline with a positive timeout")
	}
	_, _ = timeoutInterceptor(0)(context.Background(), nil, info, handler)
	if deadline {
		t.Error("expected no deadline with a zero timeout")
	}
}

func TestReadyCheck(t *testing.T) {
	s := &GRPCServer{}
	if err := s.readyCheck(context.Background()); err != nil {
		t.Errorf("readyCheck() without a check = %v, want nil", err)
	}

	down := errors.New("store down")
	s.SetReadyCheck(func(context.Context) error { return down })
	if err := s.readyCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("readyCheck() = %v, want %v", err, down)
	}
}
