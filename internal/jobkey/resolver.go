package jobkey

import (
	"strings"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/google/uuid"
)

const (
	inputSuffix        = ".mp3"
	environmentMetaKey = "env"
)

// rootNamespace seeds the per-environment UUIDv5 namespaces used for job ids.
var rootNamespace = uuid.MustParse("6f3c8a52-2d0e-5b8e-9a51-0c1f4f7d9e21")

type Resolver struct {
	inputPrefix        string
	defaultEnvironment string
	knownEnvironments  []string
	targetLanguages    []string
	voices             func(lang string) (string, bool)
	now                func() time.Time
}

func NewResolver(cfg *config.PipelineConfig) *Resolver {
	return &Resolver{
		inputPrefix:        strings.Trim(cfg.InputPrefix, "/"),
		defaultEnvironment: cfg.DefaultEnvironment,
		knownEnvironments:  cfg.KnownEnvironments,
		targetLanguages:    cfg.TargetLanguages,
		voices:             cfg.VoiceFor,
		now:                time.Now,
	}
}

// Resolve builds the job descriptor for an artifact event. info carries the
// object's head metadata and may be nil.
func (r *Resolver) Resolve(ev models.ArtifactEvent, info *models.ObjectInfo) (*models.Job, error) {
	baseName, err := r.matchInput(ev.Key)
	if err != nil {
		return nil, err
	}
	langs, err := r.resolveLanguages(ev.TargetLanguages)
	if err != nil {
		return nil, err
	}
	env := r.resolveEnvironment(ev, info, baseName)
	fingerprint := Fingerprint(ev, info)
	loc := ev.Locator()

	return &models.Job{
		JobID:           JobID(env, loc, fingerprint),
		Environment:     env,
		SourceLocator:   loc,
		Fingerprint:     fingerprint,
		BaseName:        baseName,
		TargetLanguages: langs,
		CreatedAt:       r.now().UTC(),
	}, nil
}

// Matches reports whether key is an input this pipeline accepts.
func (r *Resolver) Matches(key string) bool {
	_, err := r.matchInput(key)
	return err == nil
}

func (r *Resolver) matchInput(key string) (string, error) {
	rest, ok := strings.CutPrefix(key, r.inputPrefix+"/")
	if !ok {
		return "", apperrors.Classifyf(apperrors.ErrInvalidArtifact, "key %q is outside input prefix %q", key, r.inputPrefix)
	}
	if strings.Contains(rest, "/") {
		return "", apperrors.Classifyf(apperrors.ErrInvalidArtifact, "key %q is nested below input prefix %q", key, r.inputPrefix)
	}
	if !strings.HasSuffix(rest, inputSuffix) {
		return "", apperrors.Classifyf(apperrors.ErrInvalidArtifact, "key %q is not an %s file", key, inputSuffix)
	}
	base := strings.TrimSuffix(rest, inputSuffix)
	if base == "" {
		return "", apperrors.Classifyf(apperrors.ErrInvalidArtifact, "key %q has an empty file name", key)
	}
	return base, nil
}

func (r *Resolver) resolveEnvironment(ev models.ArtifactEvent, info *models.ObjectInfo, baseName string) string {
	if env := strings.TrimSpace(ev.Environment); env != "" {
		return env
	}
	if info != nil {
		if env := strings.TrimSpace(info.Metadata[environmentMetaKey]); env != "" {
			return env
		}
	}
	for _, env := range r.knownEnvironments {
		if strings.HasPrefix(baseName, env+"-") {
			return env
		}
	}
	return r.defaultEnvironment
}

func (r *Resolver) resolveLanguages(override []string) ([]string, error) {
	langs := Dedupe(override)
	if len(langs) == 0 {
		langs = Dedupe(r.targetLanguages)
	}
	if len(langs) == 0 {
		return nil, apperrors.Classifyf(apperrors.ErrInvalidArtifact, "no target languages")
	}
	return langs, nil
}

// MissingVoices lists the job languages with no voice mapping. Their
// synthesize stages fail with invalid input; the other languages still run.
func (r *Resolver) MissingVoices(job *models.Job) []string {
	var missing []string
	for _, lang := range job.TargetLanguages {
		if _, ok := r.voices(lang); !ok {
			missing = append(missing, lang)
		}
	}
	return missing
}

// Dedupe trims language codes and drops empties and repeats, keeping first-seen order.
func Dedupe(langs []string) []string {
	seen := make(map[string]struct{}, len(langs))
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// Fingerprint picks the strongest content version the notification or head carries.
func Fingerprint(ev models.ArtifactEvent, info *models.ObjectInfo) string {
	candidates := []string{ev.Fingerprint, ev.ETag}
	if info != nil {
		candidates = append(candidates, strings.Trim(info.ETag, `"`))
	}
	candidates = append(candidates, ev.VersionID)
	if info != nil {
		candidates = append(candidates, info.VersionID)
	}
	candidates = append(candidates, ev.Sequencer)
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// JobID is a UUIDv5 over the locator and fingerprint inside the environment's namespace.
func JobID(environment string, loc models.Locator, fingerprint string) string {
	ns := uuid.NewSHA1(rootNamespace, []byte(environment))
	return uuid.NewSHA1(ns, []byte(loc.String()+"\n"+fingerprint)).String()
}
