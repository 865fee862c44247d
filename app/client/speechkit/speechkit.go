package speechkit

import (
	"context"
	"cuecard/app/config"
	"encoding/json"
	"os"

	"github.com/samber/do"
	"github.com/samber/oops"
	ycsdk "github.com/yandex-cloud/go-sdk"
	"github.com/yandex-cloud/go-sdk/iamkey"
)

// Client opens streaming recognition sessions on Yandex SpeechKit v3.
type Client struct {
	sdk       *ycsdk.SDK
	languages []string
}

func New(di *do.Injector) (*Client, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	keyBytes, err := os.ReadFile(cfg.Transcribe.KeyFile)
	if err != nil {
		return nil, oops.With("key_file", cfg.Transcribe.KeyFile).Wrapf(err, "could not read service account key")
	}

	var key iamkey.Key
	if err = json.Unmarshal(keyBytes, &key); err != nil {
		return nil, oops.Wrapf(err, "could not parse service account key")
	}

	creds, err := ycsdk.ServiceAccountKey(&key)
	if err != nil {
		return nil, oops.Wrapf(err, "could not create service account credentials")
	}

	sdk, err := ycsdk.Build(ctx, ycsdk.Config{
		Credentials: creds,
	})
	if err != nil {
		return nil, oops.Wrapf(err, "failed to create Yandex SDK")
	}

	return &Client{
		sdk:       sdk,
		languages: cfg.Transcribe.Languages,
	}, nil
}

func (c *Client) Start(ctx context.Context) (*Handle, error) {
	ctx, cancel := context.WithCancel(ctx)

	client, err := c.sdk.AI().STTV3().Recognizer().RecognizeStreaming(ctx)
	if err != nil {
		cancel()
		return nil, oops.Wrapf(err, "failed to open recognition stream")
	}

	return &Handle{
		client:    client,
		cancel:    cancel,
		languages: c.languages,
	}, nil
}

func (c *Client) Shutdown() error {
	return c.sdk.Shutdown(context.Background())
}
