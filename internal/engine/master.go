package engine

import (
	"os"
	"path/filepath"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/logging"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/mastercall"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/session"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/wavsource"
)

// resolveMaster implements spec §4.9's two-path loader: prefer a cached
// .mfc feature file; otherwise decode the source .wav, extract features
// with the session's extractor, and write the features back to cache.
func (e *Engine) resolveMaster(name string, s *session.Session) (*mastercall.Data, error) {
	hop := s.Config().HopSize
	if hop <= 0 {
		hop = s.Config().MFCC.FrameSize / 2
	}

	featurePath := filepath.Join(e.defaults.FeaturesPath, name+".mfc")
	if e.defaults.FeaturesPath != "" {
		if data, err := e.masterCache.Load(featurePath, s.MFCC().Config().SampleRateHz, hop); err == nil {
			return data, nil
		}
	}

	wavPath := filepath.Join(e.defaults.MasterCallsPath, name+".wav")
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, errors.WrapSentinel(errors.ErrResourceUnavailable, "engine", "wav_path", wavPath)
	}
	defer f.Close()

	decoded, err := wavsource.Decode(f)
	if err != nil {
		return nil, err
	}
	if len(decoded.Samples) == 0 {
		return nil, errors.WrapSentinel(errors.ErrProcessingFailed, "engine", "reason", "empty_master_audio")
	}

	features, err := s.MFCC().ExtractFromBuffer(decoded.Samples, hop)
	if err != nil {
		return nil, errors.WrapSentinel(errors.ErrProcessingFailed, "engine", "stage", "master_feature_extraction")
	}
	if len(features) == 0 {
		return nil, errors.WrapSentinel(errors.ErrInsufficientData, "engine", "reason", "no_extractable_features")
	}

	data := mastercall.FromFeatures(features, decoded.SampleRate, mastercall.RMSOf(decoded.Samples), hop)

	if e.defaults.FeaturesPath != "" {
		if out, err := os.Create(featurePath); err == nil {
			if err := mastercall.Encode(out, data); err != nil {
				logging.Warn("failed to write master feature cache", "path", featurePath, "error", err)
			}
			out.Close()
			e.masterCache.Store(featurePath, data)
		}
	}

	return data, nil
}
