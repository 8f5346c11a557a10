// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/sandbox-invoke/lib/config"
	"github.com/bureau-foundation/sandbox-invoke/protocol"
)

// latestQualifier is the unpublished-version qualifier.
const latestQualifier = config.LatestQualifier

// Request is one invocation to perform.
type Request struct {
	// Event is the opaque event payload, passed through unchanged.
	Event []byte

	// Context is the decoded caller context.
	Context protocol.InvocationContext

	// InvokedFunctionARN is the function identifier the handler sees.
	InvokedFunctionARN string

	// Chained is true for requests raised by the handler itself.
	Chained bool
}

// contextPayload is the JSON shape of one entry in the context stream.
type contextPayload struct {
	ClientContext      json.RawMessage  `json:"client_context"`
	Identity           *identityPayload `json:"identity"`
	InvokedFunctionARN string           `json:"invoked_function_arn"`
}

type identityPayload struct {
	CognitoIdentityID     string `json:"cognito_identity_id"`
	CognitoIdentityPoolID string `json:"cognito_identity_pool_id"`
}

// DecodeContext decodes one context payload. Comments and trailing
// commas are tolerated. An empty or blank payload is an empty context.
// The returned ARN override is "" unless the payload names one.
func DecodeContext(raw []byte) (protocol.InvocationContext, string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return protocol.InvocationContext{}, "", nil
	}

	var payload contextPayload
	if err := json.Unmarshal(jsonc.ToJSON(trimmed), &payload); err != nil {
		return protocol.InvocationContext{}, "", fmt.Errorf("decoding invocation context: %w", err)
	}

	var invocationContext protocol.InvocationContext
	if len(payload.ClientContext) > 0 && !bytes.Equal(payload.ClientContext, []byte("null")) {
		var compacted bytes.Buffer
		if err := json.Compact(&compacted, payload.ClientContext); err != nil {
			return protocol.InvocationContext{}, "", fmt.Errorf("decoding client_context: %w", err)
		}
		invocationContext.ClientContext = compacted.Bytes()
	}
	if payload.Identity != nil {
		invocationContext.CognitoIdentityID = payload.Identity.CognitoIdentityID
		invocationContext.CognitoIdentityPoolID = payload.Identity.CognitoIdentityPoolID
	}
	return invocationContext, payload.InvokedFunctionARN, nil
}

// FunctionARN returns arn:aws:lambda:<region>:<account>:function:<name>,
// with :<qualifier> appended unless the qualifier is empty or $LATEST.
func FunctionARN(region, accountID, functionName, qualifier string) string {
	arn := "arn:aws:lambda:" + region + ":" + accountID + ":function:" + functionName
	if qualifier != "" && qualifier != latestQualifier {
		arn += ":" + qualifier
	}
	return arn
}

// newRequest pairs an event with its decoded context.
func (c *Controller) newRequest(event, rawContext []byte, chained bool) (Request, error) {
	invocationContext, arnOverride, err := DecodeContext(rawContext)
	if err != nil {
		return Request{}, err
	}
	arn := arnOverride
	if arn == "" {
		arn = c.functionARN
	}
	return Request{
		Event:              event,
		Context:            invocationContext,
		InvokedFunctionARN: arn,
		Chained:            chained,
	}, nil
}

// traceID returns a placeholder trace header:
// Root=1-<epoch hex>-<24 hex>;Parent=<16 hex>;Sampled=0.
func traceID(now time.Time) string {
	root := uuid.New()
	parent := uuid.New()
	return fmt.Sprintf("Root=1-%08x-%s;Parent=%s;Sampled=0",
		uint32(now.Unix()), hex.EncodeToString(root[:12]), hex.EncodeToString(parent[:8]))
}
