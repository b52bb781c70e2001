// Command azproxy serves the Azure OpenAI proxy: realtime session minting,
// a realtime WebSocket relay, WebRTC SDP exchange and the Responses API.
// Callers may optionally be required to present an OIDC (Entra ID) token.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/enesunal-m/azproxy"
	"github.com/enesunal-m/azproxy/server"
)

func main() {
	configPath := flag.String("config", "", "optional TOML file of configuration keys; the environment takes precedence")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := azproxy.NewLoggerFromEnv()
	defer logger.Sync()

	src := azproxy.Layered{azproxy.EnvSource{}}
	if *configPath != "" {
		file, err := azproxy.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		src = append(src, file)
	}

	p, err := azproxy.NewFromSource(src, azproxy.Options{Logger: logger})
	if err != nil {
		log.Fatalf("proxy: %v", err)
	}
	if _, _, err := p.Deployments().Resolve(azproxy.CapabilityRealtime, ""); err != nil {
		log.Fatalf("proxy: %v", err)
	}

	cfg, err := server.ConfigFromSource(src)
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	var opts []server.Option
	if cfg.Auth.Issuer != "" {
		v, err := server.NewVerifier(ctx, cfg.Auth)
		if err != nil {
			log.Fatalf("oidc: %v", err)
		}
		opts = append(opts, server.WithVerifier(v))
		logger.Info("oidc_enabled", map[string]any{"issuer": cfg.Auth.Issuer, "audience": cfg.Auth.Audience, "token_type": cfg.Auth.TokenType})
	} else {
		logger.Info("oidc_disabled", nil)
	}

	env := p.Environment()
	logger.Info("proxy_configured", map[string]any{
		"mode":       env.Mode.String(),
		"auth":       env.Credentials.Mode.String(),
		"endpoint":   env.Endpoint,
		"origins":    cfg.AllowedOrigins,
		"has_region": env.Region != "",
	})

	if err := server.New(p, cfg, opts...).ListenAndServe(ctx); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
