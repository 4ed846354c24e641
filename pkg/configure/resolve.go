package configure

// Resolve merges configuration sources into one concrete TrainingConfig.
//
// Precedence, highest first: cli > file > preset named by presetName >
// registry defaults. Merging is field-by-field; a field comes entirely
// from the highest-precedence source defining it (the resolution pair is
// atomic, never merged per component).
//
// Resolve is a pure function over its inputs. It fails only when
// presetName does not name a registered preset.
func Resolve(reg Registry, cli Partial, file *Partial, presetName string) (TrainingConfig, error) {
	merged := Partial{}

	if presetName != "" {
		preset, err := reg.Preset(presetName)
		if err != nil {
			return TrainingConfig{}, err
		}
		merged = preset
	}

	if file != nil {
		merged = merged.overlay(*file)
	}

	merged = merged.overlay(cli)

	return merged.applyTo(reg.Defaults()), nil
}
