package config

import (
	"context"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterGetter fetches a single decrypted value by name. An empty result means "not available".
type ParameterGetter func(ctx context.Context, name string) string

// ResolveSecrets fills credentials from AWS SSM Parameter Store when running in prod.
// Values already present in the config file or environment are left alone.
func (cfg *Config) ResolveSecrets(get ParameterGetter) {
	if cfg.Log.Environment != "prod" {
		return
	}
	if get == nil {
		get = getParameterStoreValue
	}

	ctx := context.Background()
	fill := func(dst *string, param string) {
		if *dst != "" || param == "" {
			return
		}
		*dst = get(ctx, param)
	}

	fill(&cfg.Notifier.Telegram.Token, cfg.SSM.TelegramTokenParam)
	fill(&cfg.Postgres.Host, cfg.SSM.PostgresHostParam)
	fill(&cfg.Postgres.User, cfg.SSM.PostgresUserParam)
	fill(&cfg.Postgres.Password, cfg.SSM.PostgresPasswordParam)
}

func getParameterStoreValue(baseCtx context.Context, parameterName string) string {
	ctxWithTimeout, cancel := context.WithTimeout(baseCtx, 5*time.Second)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctxWithTimeout)
	if err != nil {
		return ""
	}

	client := ssm.NewFromConfig(cfg)

	decrypt := true
	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctxWithTimeout, input)
	if err != nil {
		return ""
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return ""
	}

	return *result.Parameter.Value
}
