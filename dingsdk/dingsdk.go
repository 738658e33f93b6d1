package dingsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultTimeout = time.Second * 5
)

type DingContent struct {
	Content string `json:"content"`
}
type DingAt struct {
	IsAtAll bool `json:"isAtAll"`
}
type DingNotify struct {
	MsgType string      `json:"msgtype"`
	Text    DingContent `json:"text"`
	At      DingAt      `json:"at"`
}

type DingResult struct {
	ErrCode int64  `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// NewText builds a plain text message that mentions nobody.
func NewText(content string) *DingNotify {
	return &DingNotify{
		MsgType: "text",
		Text:    DingContent{Content: content},
		At:      DingAt{IsAtAll: false},
	}
}

type DingSdk struct {
	url    string
	client *http.Client
}

func NewDingSdk(url string) *DingSdk {
	sdk := &DingSdk{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	return sdk
}

func (sdk *DingSdk) Notify(ctx context.Context, notify *DingNotify) (*DingResult, error) {
	requestJson, err := json.Marshal(notify)
	if err != nil {
		return nil, errors.Wrap(err, "marshal ding notify")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sdk.url, bytes.NewReader(requestJson))
	if err != nil {
		return nil, errors.Wrap(err, "new ding request")
	}
	req.Header.Set("Accepts", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := sdk.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "post ding notify")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("response status code: %d", resp.StatusCode)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read ding response")
	}
	dingResult := new(DingResult)
	if err := json.Unmarshal(respBody, dingResult); err != nil {
		return nil, errors.Wrap(err, "parse ding response")
	}
	if dingResult.ErrCode != 0 || dingResult.ErrMsg != "ok" {
		return nil, errors.Errorf("code: %d, err: %s", dingResult.ErrCode, dingResult.ErrMsg)
	}
	return dingResult, nil
}
