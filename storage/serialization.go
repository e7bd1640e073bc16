// Copyright 2025 Kaiteki Lab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"encoding/json"
	"fmt"

	"github.com/kaiteki-lab/kotae/core"
)

// JSON is the storage codec. Rows carry free-form metadata maps and the
// durable cache tier must be able to detect parse failures on read, so a
// fixed-schema binary encoding is a poor fit here.

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) ([]byte, error) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %s: %v", ErrSerializationFailed, chunk.ID, err)
	}
	return data, nil
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	var chunk core.Chunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("%w: chunk: %v", ErrSerializationFailed, err)
	}
	return &chunk, nil
}

// MarshalEmbeddingRecord serializes an EmbeddingRecord to bytes.
func MarshalEmbeddingRecord(record *core.EmbeddingRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding %s: %v", ErrSerializationFailed, record.ChunkID, err)
	}
	return data, nil
}

// UnmarshalEmbeddingRecord deserializes an EmbeddingRecord from bytes.
func UnmarshalEmbeddingRecord(data []byte) (*core.EmbeddingRecord, error) {
	var record core.EmbeddingRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: embedding record: %v", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: document %s: %v", ErrSerializationFailed, doc.ID, err)
	}
	return data, nil
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: document: %v", ErrSerializationFailed, err)
	}
	return &doc, nil
}

// MarshalTemplate serializes a Template to bytes.
func MarshalTemplate(tpl *core.Template) ([]byte, error) {
	data, err := json.Marshal(tpl)
	if err != nil {
		return nil, fmt.Errorf("%w: template %s: %v", ErrSerializationFailed, tpl.ID, err)
	}
	return data, nil
}

// UnmarshalTemplate deserializes a Template from bytes.
func UnmarshalTemplate(data []byte) (*core.Template, error) {
	var tpl core.Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("%w: template: %v", ErrSerializationFailed, err)
	}
	return &tpl, nil
}

// MarshalShardInfo serializes a ShardInfo to bytes.
func MarshalShardInfo(info *core.ShardInfo) ([]byte, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("%w: shard %s: %v", ErrSerializationFailed, info.Name, err)
	}
	return data, nil
}

// UnmarshalShardInfo deserializes a ShardInfo from bytes.
func UnmarshalShardInfo(data []byte) (*core.ShardInfo, error) {
	var info core.ShardInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: shard info: %v", ErrSerializationFailed, err)
	}
	return &info, nil
}

// MarshalHelpPair serializes a HelpPair to bytes.
func MarshalHelpPair(pair *core.HelpPair) ([]byte, error) {
	data, err := json.Marshal(pair)
	if err != nil {
		return nil, fmt.Errorf("%w: help pair %s: %v", ErrSerializationFailed, pair.ID, err)
	}
	return data, nil
}

// UnmarshalHelpPair deserializes a HelpPair from bytes.
func UnmarshalHelpPair(data []byte) (*core.HelpPair, error) {
	var pair core.HelpPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, fmt.Errorf("%w: help pair: %v", ErrSerializationFailed, err)
	}
	return &pair, nil
}

// MarshalLogRecord serializes a LogRecord to bytes.
func MarshalLogRecord(rec *core.LogRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: log record: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalLogRecord deserializes a LogRecord from bytes.
func UnmarshalLogRecord(data []byte) (*core.LogRecord, error) {
	var rec core.LogRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: log record: %v", ErrSerializationFailed, err)
	}
	return &rec, nil
}
