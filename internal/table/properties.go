// Package table provides SST file reading and writing functionality.
// This file implements TableProperties parsing.
//

package table

import (
	"github.com/aalhour/rockyardkv/internal/block"
	"github.com/aalhour/rockyardkv/internal/encoding"
)

// Property name constants.
const (
	PropDBID                           = "rockyardkv.creating.db.identity"
	PropDBSessionID                    = "rockyardkv.creating.session.identity"
	PropDBHostID                       = "rockyardkv.creating.host.identity"
	PropOriginalFileNumber             = "rockyardkv.original.file.number"
	PropDataSize                       = "rockyardkv.data.size"
	PropIndexSize                      = "rockyardkv.index.size"
	PropIndexPartitions                = "rockyardkv.index.partitions"
	PropTopLevelIndexSize              = "rockyardkv.top-level.index.size"
	PropIndexKeyIsUserKey              = "rockyardkv.index.key.is.user.key"
	PropIndexValueIsDeltaEncoded       = "rockyardkv.index.value.is.delta.encoded"
	PropFilterSize                     = "rockyardkv.filter.size"
	PropRawKeySize                     = "rockyardkv.raw.key.size"
	PropRawValueSize                   = "rockyardkv.raw.value.size"
	PropNumDataBlocks                  = "rockyardkv.num.data.blocks"
	PropNumEntries                     = "rockyardkv.num.entries"
	PropNumFilterEntries               = "rockyardkv.num.filter.entries"
	PropDeletedKeys                    = "rockyardkv.deleted.keys"
	PropMergeOperands                  = "rockyardkv.merge.operands"
	PropNumRangeDeletions              = "rockyardkv.num.range-deletions"
	PropFormatVersion                  = "rockyardkv.format.version"
	PropFixedKeyLen                    = "rockyardkv.fixed.key.length"
	PropFilterPolicy                   = "rockyardkv.filter.policy"
	PropColumnFamilyName               = "rockyardkv.column.family.name"
	PropColumnFamilyID                 = "rockyardkv.column.family.id"
	PropComparator                     = "rockyardkv.comparator"
	PropMergeOperator                  = "rockyardkv.merge.operator"
	PropPrefixExtractorName            = "rockyardkv.prefix.extractor.name"
	PropPropertyCollectors             = "rockyardkv.property.collectors"
	PropCompression                    = "rockyardkv.compression"
	PropCompressionOptions             = "rockyardkv.compression_options"
	PropCreationTime                   = "rockyardkv.creation.time"
	PropOldestKeyTime                  = "rockyardkv.oldest.key.time"
	PropNewestKeyTime                  = "rockyardkv.newest.key.time"
	PropFileCreationTime               = "rockyardkv.file.creation.time"
	PropSlowCompressionEstimatedSize   = "rockyardkv.sample_for_compression"
	PropFastCompressionEstimatedSize   = "rockyardkv.sample_for_compression.2"
	PropTailStartOffset                = "rockyardkv.tail.start.offset"
	PropUserDefinedTimestampsPersisted = "rockyardkv.user.defined.timestamps.persisted"
	PropKeyLargestSeqno                = "rockyardkv.key.largest.seqno"
	PropKeySmallestSeqno               = "rockyardkv.key.smallest.seqno"
)

// TableProperties contains metadata about an SST file.
type TableProperties struct {
	// Basic statistics
	DataSize          uint64
	IndexSize         uint64
	IndexPartitions   uint64
	TopLevelIndexSize uint64
	FilterSize        uint64
	RawKeySize        uint64
	RawValueSize      uint64
	NumDataBlocks     uint64
	NumEntries        uint64
	NumFilterEntries  uint64
	NumDeletions      uint64
	NumMergeOperands  uint64
	NumRangeDeletions uint64
	FormatVersion     uint64
	FixedKeyLen       uint64
	ColumnFamilyID    uint64
	CreationTime      uint64
	OldestKeyTime     uint64
	NewestKeyTime     uint64
	FileCreationTime  uint64
	OrigFileNumber    uint64
	TailStartOffset   uint64
	KeyLargestSeqno   uint64
	KeySmallestSeqno  uint64

	// Boolean-like properties (stored as uint64)
	IndexKeyIsUserKey              uint64
	IndexValueIsDeltaEncoded       uint64
	UserDefinedTimestampsPersisted uint64
	SlowCompressionEstimatedSize   uint64
	FastCompressionEstimatedSize   uint64

	// String properties
	DBID                    string
	DBSessionID             string
	DBHostID                string
	FilterPolicyName        string
	ColumnFamilyName        string
	ComparatorName          string
	MergeOperatorName       string
	PrefixExtractorName     string
	PropertyCollectorsNames string
	CompressionName         string
	CompressionOptions      string

	// User-collected properties
	UserCollectedProperties map[string]string
}

// ParsePropertiesBlock parses a properties block into TableProperties.
func ParsePropertiesBlock(data []byte) (*TableProperties, error) {
	// The properties block is a regular block with key-value pairs
	blk, err := block.NewBlock(data)
	if err != nil {
		return nil, err
	}

	props := &TableProperties{
		UserCollectedProperties: make(map[string]string),
	}

	iter := blk.NewIterator()
	for iter.SeekToFirst(); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		value := iter.Value()

		// Try to parse as uint64 property
		if parseUint64Property(props, key, value) {
			continue
		}

		// Try to parse as string property
		if parseStringProperty(props, key, value) {
			continue
		}

		// Unknown property - store in user-collected
		props.UserCollectedProperties[key] = string(value)
	}

	return props, nil
}

// parseUint64Property parses a uint64 property if the key matches.
func parseUint64Property(props *TableProperties, key string, value []byte) bool {
	var target *uint64

	switch key {
	case PropOriginalFileNumber:
		target = &props.OrigFileNumber
	case PropDataSize:
		target = &props.DataSize
	case PropIndexSize:
		target = &props.IndexSize
	case PropIndexPartitions:
		target = &props.IndexPartitions
	case PropTopLevelIndexSize:
		target = &props.TopLevelIndexSize
	case PropIndexKeyIsUserKey:
		target = &props.IndexKeyIsUserKey
	case PropIndexValueIsDeltaEncoded:
		target = &props.IndexValueIsDeltaEncoded
	case PropFilterSize:
		target = &props.FilterSize
	case PropRawKeySize:
		target = &props.RawKeySize
	case PropRawValueSize:
		target = &props.RawValueSize
	case PropNumDataBlocks:
		target = &props.NumDataBlocks
	case PropNumEntries:
		target = &props.NumEntries
	case PropNumFilterEntries:
		target = &props.NumFilterEntries
	case PropDeletedKeys:
		target = &props.NumDeletions
	case PropMergeOperands:
		target = &props.NumMergeOperands
	case PropNumRangeDeletions:
		target = &props.NumRangeDeletions
	case PropFormatVersion:
		target = &props.FormatVersion
	case PropFixedKeyLen:
		target = &props.FixedKeyLen
	case PropColumnFamilyID:
		target = &props.ColumnFamilyID
	case PropCreationTime:
		target = &props.CreationTime
	case PropOldestKeyTime:
		target = &props.OldestKeyTime
	case PropNewestKeyTime:
		target = &props.NewestKeyTime
	case PropFileCreationTime:
		target = &props.FileCreationTime
	case PropTailStartOffset:
		target = &props.TailStartOffset
	case PropUserDefinedTimestampsPersisted:
		target = &props.UserDefinedTimestampsPersisted
	case PropKeyLargestSeqno:
		target = &props.KeyLargestSeqno
	case PropKeySmallestSeqno:
		target = &props.KeySmallestSeqno
	case PropSlowCompressionEstimatedSize:
		target = &props.SlowCompressionEstimatedSize
	case PropFastCompressionEstimatedSize:
		target = &props.FastCompressionEstimatedSize
	default:
		return false
	}

	// Parse varint64
	v, _, err := encoding.DecodeVarint64(value)
	if err != nil {
		return false
	}
	*target = v
	return true
}

// parseStringProperty parses a string property if the key matches.
func parseStringProperty(props *TableProperties, key string, value []byte) bool {
	switch key {
	case PropDBID:
		props.DBID = string(value)
	case PropDBSessionID:
		props.DBSessionID = string(value)
	case PropDBHostID:
		props.DBHostID = string(value)
	case PropFilterPolicy:
		props.FilterPolicyName = string(value)
	case PropColumnFamilyName:
		props.ColumnFamilyName = string(value)
	case PropComparator:
		props.ComparatorName = string(value)
	case PropMergeOperator:
		props.MergeOperatorName = string(value)
	case PropPrefixExtractorName:
		props.PrefixExtractorName = string(value)
	case PropPropertyCollectors:
		props.PropertyCollectorsNames = string(value)
	case PropCompression:
		props.CompressionName = string(value)
	case PropCompressionOptions:
		props.CompressionOptions = string(value)
	default:
		return false
	}
	return true
}
