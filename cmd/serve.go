package cmd

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/auth"
	"github.com/theapemachine/a2a-go/pkg/executor"
	"github.com/theapemachine/a2a-go/pkg/handler"
	"github.com/theapemachine/a2a-go/pkg/logging"
	"github.com/theapemachine/a2a-go/pkg/push"
	"github.com/theapemachine/a2a-go/pkg/rpc"
	"github.com/theapemachine/a2a-go/pkg/server"
	"github.com/theapemachine/a2a-go/pkg/stores"
)

var (
	serveHostFlag      string
	serveJSONRPCPort   int
	serveRESTPort      int
	serveGRPCPort      int
	serveTransportFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the reference A2A agent server",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveHostFlag, "host", "H", "0.0.0.0", "host address to bind to")
	serveCmd.Flags().IntVar(&serveJSONRPCPort, "jsonrpc-port", 8080, "port for the JSON-RPC transport")
	serveCmd.Flags().IntVar(&serveRESTPort, "rest-port", 8081, "port for the REST transport")
	serveCmd.Flags().IntVar(&serveGRPCPort, "grpc-port", 8082, "port for the gRPC transport")
	serveCmd.Flags().StringVar(&serveTransportFlag, "preferred-transport", "jsonrpc", "transport advertised as preferred in the agent card")
}

// runServe wires the in-memory task store, push-notification sender, and
// echo executor into a handler.Handler, then mounts it on all three wire
// adapters side by side — a single process answering JSON-RPC, REST, and
// gRPC simultaneously, matching the "one agent, several interfaces"
// shape an AgentCard's additionalInterfaces is meant to advertise.
func runServe() error {
	logger := logging.Named("serve")

	baseURL := fmt.Sprintf("http://%s:%d", serveHostFlag, serveJSONRPCPort)
	card := a2a.AgentCard{
		Name:               baseURL,
		Description:        "Reference A2A agent exposing the echo skill over JSON-RPC, REST, and gRPC.",
		URL:                baseURL,
		PreferredTransport: serveTransportFlag,
		Version:            viper.GetString("agent.version"),
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Capabilities: a2a.AgentCapabilities{
			Streaming:              viper.GetBool("agent.capabilities.streaming"),
			PushNotifications:      viper.GetBool("agent.capabilities.pushNotifications"),
			StateTransitionHistory: viper.GetBool("agent.capabilities.stateTransitionHistory"),
		},
		Skills: []a2a.AgentSkill{{
			ID:          "echo",
			Name:        "Echo",
			Description: "Echoes the first text part of the incoming message back as an artifact.",
			InputModes:  []string{"text"},
			OutputModes: []string{"text"},
		}},
		AdditionalInterfaces: []a2a.AgentInterface{
			{Transport: "rest", URL: fmt.Sprintf("http://%s:%d", serveHostFlag, serveRESTPort)},
			{Transport: "grpc", URL: fmt.Sprintf("%s:%d", serveHostFlag, serveGRPCPort)},
		},
	}

	store := stores.NewInMemoryTaskStore()
	pushStore := push.NewInMemoryConfigStore()
	pushSender := push.NewSender(pushStore, 3, 2*time.Second)

	h := handler.New(card, executor.NewEchoExecutor(), store, pushStore, pushSender)

	var jsonrpcSrv http.Handler = server.NewJSONRPCHandler(h).WithRateLimit(100, time.Minute)
	if key := viper.GetString("auth.signingKey"); key != "" {
		jsonrpcSrv = server.WithAuth(jsonrpcSrv, auth.NewServiceWithKey([]byte(key)))
	}
	restSrv := server.NewRESTServer(h)
	grpcSrv := server.NewGRPCServer(h)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", serveHostFlag, serveGRPCPort))
	if err != nil {
		return fmt.Errorf("binding grpc listener: %w", err)
	}
	grpcServer := grpc.NewServer(grpc.ForceServerCodec(rpc.JSONCodec{}))
	grpcSrv.Register(grpcServer)

	errCh := make(chan error, 3)
	go func() {
		logger.Info("jsonrpc listening", "addr", fmt.Sprintf("%s:%d", serveHostFlag, serveJSONRPCPort))
		errCh <- httpListenAndServe(fmt.Sprintf("%s:%d", serveHostFlag, serveJSONRPCPort), jsonrpcSrv)
	}()
	go func() {
		logger.Info("rest listening", "addr", fmt.Sprintf("%s:%d", serveHostFlag, serveRESTPort))
		errCh <- restSrv.Listen(fmt.Sprintf("%s:%d", serveHostFlag, serveRESTPort))
	}()
	go func() {
		logger.Info("grpc listening", "addr", grpcListener.Addr().String())
		errCh <- grpcServer.Serve(grpcListener)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	logger.Info("shutting down")
	grpcServer.GracefulStop()
	return nil
}

func httpListenAndServe(addr string, h http.Handler) error {
	return http.ListenAndServe(addr, h)
}

var longServe = `
Serve the reference A2A agent over JSON-RPC, REST, and gRPC at once.

Examples:
  # Serve on the default ports
  a2a-go serve

  # Serve on custom ports
  a2a-go serve --jsonrpc-port 9000 --rest-port 9001 --grpc-port 9002
`
