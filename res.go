// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	"encoding/json"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"github.com/tidwall/gjson"
)

// ConfigRes represents the configuration document fetched from an agent
type ConfigRes struct {
	// Content is the configuration document text
	Content string

	// Notifications contains the raw gNMI notification messages
	Notifications []*gnmipb.Notification

	// Timestamp is the response timestamp (nanoseconds since Unix epoch)
	Timestamp int64

	// OK indicates if the operation succeeded
	OK bool
}

// GetValue retrieves a value from the response notifications using a gjson
// path.
//
// The JSON structure uses protobuf JSON marshaling conventions where field
// names are lowercase and TypedValue.Value is nested with capitalized names.
//
// Example:
//
//	res, _ := client.FetchConfig(ctx)
//	ts := res.GetValue("notification.0.timestamp").Int()
func (r ConfigRes) GetValue(path string) gjson.Result {
	jsonStr := r.JSON()
	if jsonStr == "" {
		return gjson.Result{}
	}
	return gjson.Get(jsonStr, path)
}

// JSON returns the response as a JSON string, useful for debugging and custom
// parsing. Returns an empty string if marshaling fails.
func (r ConfigRes) JSON() string {
	wrapper := struct {
		Notification []*gnmipb.Notification `json:"notification"`
		Content      string                 `json:"content"`
		Timestamp    int64                  `json:"timestamp"`
		OK           bool                   `json:"ok"`
	}{
		Notification: r.Notifications,
		Content:      r.Content,
		Timestamp:    r.Timestamp,
		OK:           r.OK,
	}

	data, err := json.Marshal(wrapper)
	if err != nil {
		return ""
	}
	return string(data)
}

// SetRes represents a gNMI Set response from an agent
type SetRes struct {
	// Response is the gNMI SetResponse
	Response *gnmipb.SetResponse

	// Timestamp is the response timestamp (nanoseconds since Unix epoch)
	Timestamp int64

	// OK indicates if the operation succeeded
	OK bool
}

// GetValue retrieves a value from the SetResponse using a gjson path.
//
// Enum fields marshal as numbers; compare against the generated constants.
//
// Example:
//
//	res, _ := client.PushConfig(ctx, content)
//	replaced := res.GetValue("response.response.0.op").Int() == int64(gnmipb.UpdateResult_REPLACE)
func (r SetRes) GetValue(path string) gjson.Result {
	jsonStr := r.JSON()
	if jsonStr == "" {
		return gjson.Result{}
	}
	return gjson.Get(jsonStr, path)
}

// JSON returns the SetResponse as a JSON string. Returns an empty string if
// marshaling fails.
func (r SetRes) JSON() string {
	if r.Response == nil {
		return ""
	}

	wrapper := struct {
		Response  *gnmipb.SetResponse `json:"response"`
		Timestamp int64               `json:"timestamp"`
		OK        bool                `json:"ok"`
	}{
		Response:  r.Response,
		Timestamp: r.Timestamp,
		OK:        r.OK,
	}

	data, err := json.Marshal(wrapper)
	if err != nil {
		return ""
	}
	return string(data)
}

// CapabilitiesRes represents an agent's capability descriptor
type CapabilitiesRes struct {
	// Version is the agent's gNMI version
	Version string

	// Encodings lists the supported encodings
	Encodings []string

	// Models contains the supported data models
	Models []*gnmipb.ModelData

	// OK indicates if the operation succeeded
	OK bool
}
