package shared

import "strings"

// Delimiters of the two blocks every completion must contain.
const (
	HTMLOpenTag    = "<SHADER_HTML>"
	HTMLCloseTag   = "</SHADER_HTML>"
	ConfigOpenTag  = "<TWEAKPANE_CONFIG>"
	ConfigCloseTag = "</TWEAKPANE_CONFIG>"
)

// CanvasElementID is the id the generated document must give its canvas.
const CanvasElementID = "shader-canvas"

// UpdateParamsMessageType tags every parameter push sent into a renderer.
const UpdateParamsMessageType = "UPDATE_PARAMS"

const shaderPromptIntro = `You are an expert WebGL fragment shader programmer. Your task is to generate shader content based on the user's request.

IMPORTANT: You must return your response in this EXACT format, using each tag pair exactly once:

` + HTMLOpenTag + `
[Complete HTML document for the shader]
` + HTMLCloseTag + `

` + ConfigOpenTag + `
[JSON configuration object for TweakPane controls]
` + ConfigCloseTag + `

`

const shaderPromptRequirements = `## Requirements:

### HTML Document Structure:
- Complete HTML with DOCTYPE, head, and body
- WebGL fragment shader that creates visually interesting effects
- Canvas element with id="` + CanvasElementID + `"
- NO TweakPane controls or UI elements (these will be rendered externally)
- PostMessage listener to receive parameter updates from external controls
- Animation loop using requestAnimationFrame
- Self-contained: no external scripts, stylesheets, fonts or images

### Shader Requirements:
- Always use WebGL 2.0
- Use WebGL fragment shader with gl_FragCoord for pixel coordinates
- Always include: uniform float u_time; uniform vec2 u_resolution;
- Add custom uniforms for user-controllable parameters
- Canvas should fill the available space (width: 100%, height: 100vh)

`

const shaderPromptMessaging = `### PostMessage Integration:
- Listen for messages with type '` + UpdateParamsMessageType + `'
- Update shader uniforms when receiving parameter changes
- Ignore parameters you do not recognise; keep the previous value of parameters that are missing
- Example listener:
` + "```javascript" + `
const params = {
  speed: 1.0,
  color: "#ff0000"
};

window.addEventListener('message', (event) => {
  if (event.data && event.data.type === '` + UpdateParamsMessageType + `') {
    Object.assign(params, event.data.params);
  }
});

function hexToRgb(hex) {
  const n = parseInt(hex.slice(1), 16);
  return [((n >> 16) & 255) / 255, ((n >> 8) & 255) / 255, (n & 255) / 255];
}
` + "```" + `

`

const shaderPromptAudio = `### Audio Reactivity (only if the request implies sound, music, beats or a microphone):
- Ask for the microphone with navigator.mediaDevices.getUserMedia({ audio: true })
- Feed it into an AudioContext AnalyserNode (fftSize 256)
- Every frame call analyser.getByteFrequencyData(data) and average the bins into a 0..1 level
- Pass the level to the shader as uniform float u_audio;
- If the microphone is unavailable keep u_audio at 0 and keep animating
` + "```javascript" + `
let analyser, freq;
navigator.mediaDevices.getUserMedia({ audio: true }).then((stream) => {
  const ctx = new AudioContext();
  analyser = ctx.createAnalyser();
  analyser.fftSize = 256;
  ctx.createMediaStreamSource(stream).connect(analyser);
  freq = new Uint8Array(analyser.frequencyBinCount);
}).catch(() => {});

function audioLevel() {
  if (!analyser) return 0;
  analyser.getByteFrequencyData(freq);
  let sum = 0;
  for (const v of freq) sum += v;
  return sum / (freq.length * 255);
}
` + "```" + `

`

const shaderPromptTemplate = `### HTML Template:
` + "```html" + `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Shader</title>
    <style>
        body { margin: 0; padding: 0; overflow: hidden; }
        canvas { width: 100%; height: 100vh; display: block; }
    </style>
</head>
<body>
    <canvas id="` + CanvasElementID + `"></canvas>
    <script>
        // WebGL setup, shader compilation, postMessage listener, animation loop
        // NO TweakPane code here!
    </script>
</body>
</html>
` + "```" + `

`

const shaderPromptSchema = `### TweakPane Configuration:
Return a JSON object with this structure (group name -> parameter name -> control):
` + "```json" + `
{
  "Controls": {
    "paramName": {
      "value": 1.0,
      "min": 0.0,
      "max": 2.0,
      "step": 0.1
    },
    "colorParam": {
      "value": "#ff0000"
    },
    "selectParam": {
      "value": "option1",
      "options": {
        "Option 1": "option1",
        "Option 2": "option2"
      }
    }
  }
}
` + "```" + `
Every parameter name in the JSON must match a key of the params object the HTML listens for.

`

// BuildShaderPrompt composes the full instruction document for one request.
// When parent is set the model is asked to adapt that shader rather than start
// from scratch. The user request always comes last, verbatim.
func BuildShaderPrompt(userRequest string, parent *Artifact) string {
	var b strings.Builder
	b.WriteString(shaderPromptIntro)
	b.WriteString(shaderPromptRequirements)
	b.WriteString(shaderPromptMessaging)
	b.WriteString(shaderPromptAudio)
	b.WriteString(shaderPromptTemplate)
	b.WriteString(shaderPromptSchema)

	if parent != nil {
		b.WriteString("## Existing shader to adapt:\n")
		b.WriteString("Modify this shader according to the user request. Keep what the request does not ask to change, and return the complete updated HTML and the complete updated JSON.\n\n")
		b.WriteString("### Existing HTML:\n```html\n")
		b.WriteString(parent.HTML)
		b.WriteString("\n```\n\n")
		b.WriteString("### Existing TweakPane Configuration:\n```json\n")
		b.WriteString(parent.Config.String())
		b.WriteString("\n```\n\n")
	}

	b.WriteString("## User Request:\n")
	b.WriteString(userRequest)
	return b.String()
}
