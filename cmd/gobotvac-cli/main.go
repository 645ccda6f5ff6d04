package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fullstorydev/grpcurl"
	"github.com/jhump/protoreflect/grpcreflect"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joshp123/gobotvac/internal/core"
	"github.com/joshp123/gobotvac/internal/rpc"
)

type cliOptions struct {
	addr    string
	json    bool
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:          "gobotvac-cli",
		Short:        "Talk to a running gobotvac daemon",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", "", "daemon gRPC address (default from GOBOTVAC_GRPC_ADDR or config)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON output")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newPluginsCmd(opts),
		newServicesCmd(opts),
		newMethodsCmd(opts),
		newCallCmd(opts),
		newRobotsCmd(opts),
	)
	return root
}

// session holds a connection for the lifetime of one command.
type session struct {
	ctx    context.Context
	conn   *grpc.ClientConn
	out    outputMode
	cancel context.CancelFunc
}

func (o *cliOptions) connect(cmd *cobra.Command) (*session, error) {
	addr := o.addr
	if addr == "" {
		addr = resolveAddr()
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	conn, err := grpcurl.BlockingDial(ctx, "tcp", addr, insecure.NewCredentials())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &session{
		ctx:    ctx,
		conn:   conn,
		out:    outputMode{json: o.json, w: cmd.OutOrStdout()},
		cancel: cancel,
	}, nil
}

func (s *session) Close() {
	_ = s.conn.Close()
	s.cancel()
}

func newPluginsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "plugins", Short: "Inspect the plugin registry"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			resp, err := rpc.Invoke(s.ctx, s.conn, core.RegistryServiceName, "ListPlugins", nil)
			if err != nil {
				return fmt.Errorf("list plugins: %w", err)
			}
			var out struct {
				Plugins []core.PluginSummary `json:"plugins"`
			}
			if err := rpc.FromStruct(resp, &out); err != nil {
				return err
			}
			if s.out.json {
				return s.out.printJSON(out)
			}
			rows := [][]string{{"ID", "NAME", "VERSION", "STATUS"}}
			for _, p := range out.Plugins {
				rows = append(rows, []string{p.PluginID, p.DisplayName, p.Version, p.Status})
			}
			s.out.table(rows)
			return nil
		},
	}, &cobra.Command{
		Use:   "describe <plugin_id>",
		Short: "Show a plugin descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			req, err := rpc.ToStruct(map[string]string{"plugin_id": args[0]})
			if err != nil {
				return err
			}
			resp, err := rpc.Invoke(s.ctx, s.conn, core.RegistryServiceName, "DescribePlugin", req)
			if err != nil {
				return fmt.Errorf("describe plugin: %w", err)
			}
			var desc core.PluginDescriptor
			if err := rpc.FromStruct(resp, &desc); err != nil {
				return err
			}
			if s.out.json {
				return s.out.printJSON(desc)
			}
			w := s.out.w
			fmt.Fprintf(w, "id: %s\n", desc.PluginID)
			fmt.Fprintf(w, "name: %s\n", desc.DisplayName)
			fmt.Fprintf(w, "version: %s\n", desc.Version)
			fmt.Fprintf(w, "status: %s\n", desc.Status)
			if desc.HealthMessage != "" {
				fmt.Fprintf(w, "health: %s\n", desc.HealthMessage)
			}
			fmt.Fprintln(w, "services:")
			for _, svc := range desc.Services {
				fmt.Fprintf(w, "  - %s\n", svc)
			}
			fmt.Fprintln(w, "dashboards:")
			for _, dash := range desc.Dashboards {
				fmt.Fprintf(w, "  - %s (%s)\n", dash.Name, dash.Path)
			}
			fmt.Fprintln(w, "agents_md:")
			fmt.Fprintln(w, desc.AgentsMD)
			return nil
		},
	})
	return cmd
}

func newServicesCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List gRPC services exposed by the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			services, err := grpcurl.ListServices(reflectionSource(s.ctx, s.conn))
			if err != nil {
				return fmt.Errorf("list services: %w", err)
			}
			for _, service := range services {
				fmt.Fprintln(s.out.w, service)
			}
			return nil
		},
	}
}

func newMethodsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "methods <service>",
		Short: "List the methods of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			methods, err := grpcurl.ListMethods(reflectionSource(s.ctx, s.conn), args[0])
			if err != nil {
				return fmt.Errorf("list methods: %w", err)
			}
			for _, method := range methods {
				fmt.Fprintln(s.out.w, method)
			}
			return nil
		},
	}
}

func newCallCmd(opts *cliOptions) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "call <service/method>",
		Short: "Invoke any method with a JSON body (--data or stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			var reader io.Reader
			switch {
			case data != "":
				reader = strings.NewReader(data)
			case isStdinTerminal():
				reader = strings.NewReader("{}")
			default:
				reader = cmd.InOrStdin()
			}

			descSource := reflectionSource(s.ctx, s.conn)
			parser, formatter, err := grpcurl.RequestParserAndFormatter(grpcurl.FormatJSON, descSource, reader, grpcurl.FormatOptions{})
			if err != nil {
				return fmt.Errorf("parse request: %w", err)
			}
			handler := grpcurl.NewDefaultEventHandler(s.out.w, descSource, formatter, false)
			if err := grpcurl.InvokeRPC(s.ctx, descSource, s.conn, args[0], nil, handler, parser.Next); err != nil {
				return fmt.Errorf("invoke: %w", err)
			}
			if handler.Status != nil && handler.Status.Err() != nil {
				return handler.Status.Err()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "JSON request body")
	return cmd
}

func reflectionSource(ctx context.Context, conn *grpc.ClientConn) grpcurl.DescriptorSource {
	client := grpcreflect.NewClientAuto(ctx, conn)
	return grpcurl.DescriptorSourceFromServer(ctx, client)
}

func isStdinTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return true
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
