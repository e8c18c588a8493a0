package translator

import (
	"context"
	"fmt"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
)

var (
	translator *gst.ShaderTranslator
	initErr    error
	initOnce   sync.Once
)

// Get returns the process-wide shader translator, creating it on first use.
func Get() (*gst.ShaderTranslator, error) {
	initOnce.Do(func() {
		translator, initErr = gst.NewShaderTranslator(context.Background())
	})
	return translator, initErr
}

// Shader is a translated stage ready for the GL driver.
type Shader struct {
	Code     string
	Uniforms map[string]gst.ShaderVariable
}

// Translate converts a GLSL ES 3.00 stage ("vertex" or "fragment") into the
// dialect of the current context.
func Translate(source, stage string, gles bool) (*Shader, error) {
	t, err := Get()
	if err != nil {
		return nil, fmt.Errorf("failed to create shader translator: %w", err)
	}
	outputFormat := gst.OutputFormatGLSL410
	if gles {
		outputFormat = gst.OutputFormatESSL
	}
	out, err := t.TranslateShader(source, stage, gst.ShaderSpecWebGL2, outputFormat)
	if err != nil {
		return nil, fmt.Errorf("%s shader translation failed: %w", stage, err)
	}
	return &Shader{Code: out.Code, Uniforms: out.Variables}, nil
}

// MappedName returns the name the translator gave to a uniform or attribute,
// falling back to the source name.
func (s *Shader) MappedName(name string) string {
	if v, ok := s.Uniforms[name]; ok && v.MappedName != "" {
		return v.MappedName
	}
	return name
}
