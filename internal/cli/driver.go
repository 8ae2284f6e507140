package cli

import (
	"github.com/mshroom/RecordManager/internal/config"
	"github.com/mshroom/RecordManager/internal/harvest"
	"github.com/mshroom/RecordManager/internal/httpx"
	"github.com/mshroom/RecordManager/internal/idnorm"
	"github.com/mshroom/RecordManager/internal/oaixml"
	"github.com/mshroom/RecordManager/internal/record"
)

func newDriverFromConfig(src *config.Source, onRecord harvest.RecordCallback) (*harvest.Driver, error) {
	sess := record.NewSession(src.ID, src.BaseURL)
	sess.Set = src.Set
	sess.Prefix = src.Prefix
	sess.IDPrefix = src.IDPrefix
	sess.IDRewrites = src.IDRewrites
	sess.Granularity = src.Granularity
	if src.SameTokenLimit > 0 {
		sess.RepeatLimit = src.SameTokenLimit
	}

	norm, err := idnorm.New(src.IDPrefix, src.IDRewrites)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid idSearch/idReplace configuration", err)
	}

	httpOpts := httpx.DefaultOptions()
	httpOpts.TraceLog = src.DebugLog
	client := httpx.New(httpOpts)

	xmlCfg := oaixml.SourceConfig{IgnoreNoRecordsMatch: src.IgnoreNoRecordsMatch}
	if src.OaipmhTransformation != "" {
		xmlCfg.Transform = &oaixml.ExecTransformer{StylesheetPath: src.OaipmhTransformation}
	}

	return harvest.New(sess, client, norm, xmlCfg, onRecord), nil
}
