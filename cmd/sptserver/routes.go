package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sptgo/gameserver/pkg/httpresponse"
	"github.com/sptgo/gameserver/pkg/notifier"
	"github.com/sptgo/gameserver/pkg/router"
	"github.com/sptgo/gameserver/pkg/serializer"
)

type keepAlive struct {
	Msg     string `json:"msg"`
	UTCTime int64  `json:"utc_time"`
}

type notifierChannel struct {
	Server         string `json:"server"`
	ChannelID      string `json:"channel_id"`
	URL            string `json:"url"`
	NotifierServer string `json:"notifierServer"`
	WS             string `json:"ws"`
}

// registerRoutes installs the routes this binary answers itself. Game routes
// are registered by whatever embeds the router.
func registerRoutes(rt *router.Router, now func() time.Time) {
	rt.Named("keepalive", "/client/game/keepalive", func(req *router.Request) (string, error) {
		return httpresponse.GetBody(keepAlive{Msg: "OK", UTCTime: now().Unix()}, httpresponse.None, ""), nil
	})

	rt.Named("notifier.channel", "/client/notifier/channel/create", func(req *router.Request) (string, error) {
		if req.SessionID.IsEmpty() {
			return httpresponse.GetBody[any](nil, httpresponse.NotAuthorized, "no session"), nil
		}
		host := req.HTTP.Host
		id := req.SessionID.String()
		return httpresponse.GetBody(notifierChannel{
			Server:         host,
			ChannelID:      id,
			NotifierServer: "https://" + host + "/notifierServer/get/" + id,
			WS:             "wss://" + host + "/notifierServer/getwebsocket/" + id,
		}, httpresponse.None, ""), nil
	})

	rt.Named("notifier.get", "/notifierServer/get/{sessionID}", marker(serializer.MarkerNotify))
	rt.Named("files.bundle", "/files/bundle/*", marker(serializer.MarkerBundle))
	rt.Named("files.image", "/files/*", marker(serializer.MarkerImage))
}

func marker(m serializer.Marker) router.Action {
	return func(*router.Request) (string, error) {
		return string(m), nil
	}
}

// logActions logs every action at debug level with its duration.
func logActions(logger *slog.Logger) router.Middleware {
	return func(next router.Action) router.Action {
		return func(req *router.Request) (string, error) {
			start := time.Now()
			out, err := next(req)
			if err != nil {
				logger.Warn("route failed", "pattern", req.Pattern, "session", req.SessionID.String(), "error", err)
			} else if logger.Enabled(req.Context(), slog.LevelDebug) {
				logger.Debug("route resolved", "pattern", req.Pattern, "duration", time.Since(start))
			}
			return out, err
		}
	}
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the built-in routes",
		Run: func(cmd *cobra.Command, args []string) {
			rt := router.New()
			registerRoutes(rt, time.Now)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATTERN\tKIND\tNAME")
			for _, info := range rt.Routes() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Pattern, info.Kind, info.Name)
			}
			tw.Flush()

			fmt.Fprintf(cmd.OutOrStdout(), "\nWebSocket: %s{sessionID}\n", notifier.DefaultPathPrefix)
		},
	}
}
