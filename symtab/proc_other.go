//go:build !linux && !darwin

package symtab

func platformSupport() Support { return SupportNone }

func loadedModules() ([]*Module, error) {
	return nil, ErrUnsupported
}
