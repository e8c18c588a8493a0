package shader

import (
	"fmt"
	"strings"
)

// ──────────────────────────────── Configuration ────────────────────────────────

// AspectMode selects how the fragment stage fits the texture onto the plane.
type AspectMode int

const (
	// CoverCrop keeps the texture's aspect ratio and discards fragments whose
	// remapped UV falls outside the texture.
	CoverCrop AspectMode = iota
	// Letterbox remaps UVs by the min ratio and samples without discarding.
	Letterbox
)

func (m AspectMode) String() string {
	switch m {
	case Letterbox:
		return "letterbox"
	default:
		return "cover"
	}
}

// ParseAspectMode maps a config string to an AspectMode.
func ParseAspectMode(s string) (AspectMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cover", "crop", "cover-crop":
		return CoverCrop, nil
	case "letterbox":
		return Letterbox, nil
	}
	return CoverCrop, fmt.Errorf("unknown aspect mode %q", s)
}

// ColorPipeline selects how sampled color is treated.
type ColorPipeline int

const (
	// ColorLinear decodes the display-encoded texture to linear light on read
	// (sRGB internal format) and re-encodes it on output.
	ColorLinear ColorPipeline = iota
	// ColorPassthrough writes the raw texture sample.
	ColorPassthrough
)

func (c ColorPipeline) String() string {
	if c == ColorPassthrough {
		return "passthrough"
	}
	return "linear"
}

// ParseColorPipeline maps a config string to a ColorPipeline.
func ParseColorPipeline(s string) (ColorPipeline, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear", "srgb":
		return ColorLinear, nil
	case "passthrough", "raw":
		return ColorPassthrough, nil
	}
	return ColorLinear, fmt.Errorf("unknown color pipeline %q", s)
}

// ───────────────────────────────── Vertex stage ─────────────────────────────────

// NoiseGLSL is the 2D simplex noise shared with noise.Simplex2D.
const NoiseGLSL = `
vec3 mod289(vec3 x) { return x - floor(x * (1.0 / 289.0)) * 289.0; }
vec2 mod289(vec2 x) { return x - floor(x * (1.0 / 289.0)) * 289.0; }
vec3 permute(vec3 x) { return mod289(((x * 34.0) + 1.0) * x); }

float snoise(vec2 v) {
    const vec4 C = vec4(0.211324865405187, 0.366025403784439,
                        -0.577350269189626, 0.024390243902439);
    vec2 i  = floor(v + dot(v, C.yy));
    vec2 x0 = v - i + dot(i, C.xx);
    vec2 i1 = (x0.x > x0.y) ? vec2(1.0, 0.0) : vec2(0.0, 1.0);
    vec4 x12 = x0.xyxy + C.xxzz;
    x12.xy -= i1;
    i = mod289(i);
    vec3 p = permute(permute(i.y + vec3(0.0, i1.y, 1.0)) + i.x + vec3(0.0, i1.x, 1.0));
    vec3 m = max(0.5 - vec3(dot(x0, x0), dot(x12.xy, x12.xy), dot(x12.zw, x12.zw)), 0.0);
    m = m * m;
    m = m * m;
    vec3 x = 2.0 * fract(p * C.www) - 1.0;
    vec3 h = abs(x) - 0.5;
    vec3 ox = floor(x + 0.5);
    vec3 a0 = x - ox;
    m *= 1.79284291400159 - 0.85373472095314 * (a0 * a0 + h * h);
    vec3 g;
    g.x  = a0.x  * x0.x   + h.x  * x0.y;
    g.yz = a0.yz * x12.xz + h.yz * x12.yw;
    return 130.0 * dot(m, g);
}
`

const vertexPreamble = `#version 300 es
precision highp float;

layout (location = 0) in vec3 position;
layout (location = 1) in vec2 uv;

uniform mat4 modelViewMatrix;
uniform mat4 projectionMatrix;
uniform float uTime;
uniform float uFlow;
uniform float uLens;
uniform float uPinch;
uniform float uScale;

out vec2 vUv;
`

const vertexMain = `
void main() {
    vUv = uv;
    vec3 pos = position;

    pos.xy *= uScale;

    float dist = length(uv - 0.5);
    float lensEffect = uLens * dist * dist;
    pos.xy *= (1.0 - lensEffect);

    float twist = smoothstep(0.0, 0.7, dist);
    float angle = uPinch * twist;
    float s = sin(angle);
    float c = cos(angle);
    pos.xy = mat2(c, s, -s, c) * pos.xy;

    float n = snoise(uv * 3.0 + uTime * 0.2);
    pos.z += n * uFlow;

    gl_Position = projectionMatrix * modelViewMatrix * vec4(pos, 1.0);
}
`

// ──────────────────────────────── Fragment stage ────────────────────────────────

const fragmentBody = `
uniform sampler2D uTexture;
uniform float uImageAspect;
uniform float uPlaneAspect;

in vec2 vUv;
out vec4 fragColor;

vec3 linearToSRGB(vec3 l) {
    bvec3 cutoff = lessThanEqual(l, vec3(0.0031308));
    vec3 low  = l * 12.92;
    vec3 high = 1.055 * pow(l, vec3(1.0 / 2.4)) - 0.055;
    return mix(high, low, vec3(cutoff));
}

void main() {
#if ASPECT_MODE == 0
    float r = uPlaneAspect / uImageAspect;
    vec2 scaleVec = r > 1.0 ? vec2(1.0 / r, 1.0) : vec2(1.0, r);
    vec2 st = (vUv - 0.5) / scaleVec + 0.5;
    if (st.x < 0.0 || st.x > 1.0 || st.y < 0.0 || st.y > 1.0) {
        discard;
    }
#else
    vec2 ratio = vec2(min(uPlaneAspect / uImageAspect, 1.0),
                      min(uImageAspect / uPlaneAspect, 1.0));
    vec2 st = vUv * ratio + (1.0 - ratio) * 0.5;
#endif

    // image rows are uploaded top-first
    vec4 texel = texture(uTexture, vec2(st.x, 1.0 - st.y));

#if COLOR_LINEAR
    fragColor = vec4(linearToSRGB(texel.rgb), texel.a);
#else
    fragColor = texel;
#endif
}
`

// ───────────────────────────────── Blit (resize) ─────────────────────────────────

const blitVertexSource = `#version 300 es
layout (location = 0) in vec2 in_vert;
out vec2 frag_uv;
void main() {
    frag_uv = in_vert * 0.5 + 0.5;
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

const blitFragmentSource = `#version 300 es
precision mediump float;
in vec2 frag_uv;
out vec4 fragColor;
uniform sampler2D u_texture;
void main() { fragColor = texture(u_texture, frag_uv); }
`

// ────────────────────────────────── Public API ─────────────────────────────────

// VertexSource returns the displacement vertex stage.
func VertexSource() string {
	return vertexPreamble + NoiseGLSL + vertexMain
}

// FragmentSource returns the sampling fragment stage for the given mode and
// color pipeline.
func FragmentSource(mode AspectMode, color ColorPipeline) string {
	linear := 0
	if color == ColorLinear {
		linear = 1
	}
	header := fmt.Sprintf("#version 300 es\nprecision highp float;\n\n#define ASPECT_MODE %d\n#define COLOR_LINEAR %d\n", int(mode), linear)
	return header + fragmentBody
}

// BlitSource returns the full-screen copy pair used for off-screen downscaling.
func BlitSource() (vertex, fragment string) {
	return blitVertexSource, blitFragmentSource
}
