package shared

import "time"

// DefaultShaderID is the fixed id of the starter shader.
const DefaultShaderID = "starterShader01"

const defaultShaderHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Starter</title>
    <style>
        body { margin: 0; padding: 0; overflow: hidden; background: #000; }
        canvas { width: 100%; height: 100vh; display: block; }
    </style>
</head>
<body>
    <canvas id="shader-canvas"></canvas>
    <script>
        const params = { speed: 1.0, color: "#ff3366", pattern: "rings" };
        window.addEventListener('message', (event) => {
            if (event.data && event.data.type === 'UPDATE_PARAMS') {
                Object.assign(params, event.data.params);
            }
        });

        const canvas = document.getElementById('shader-canvas');
        const gl = canvas.getContext('webgl2');

        const vs = '#version 300 es\nin vec2 p;void main(){gl_Position=vec4(p,0.,1.);}';
        const fs = '#version 300 es\nprecision highp float;' +
            'uniform float u_time;uniform vec2 u_resolution;uniform float u_speed;uniform vec3 u_color;uniform int u_pattern;' +
            'out vec4 o;void main(){vec2 uv=(gl_FragCoord.xy-.5*u_resolution)/u_resolution.y;float d=length(uv);' +
            'float v=u_pattern==0?sin(d*30.-u_time*u_speed*3.):sin(atan(uv.y,uv.x)*8.+u_time*u_speed);' +
            'o=vec4(u_color*(.5+.5*v)*smoothstep(.8,.0,d),1.);}';

        function compile(type, src) {
            const s = gl.createShader(type);
            gl.shaderSource(s, src);
            gl.compileShader(s);
            return s;
        }
        const prog = gl.createProgram();
        gl.attachShader(prog, compile(gl.VERTEX_SHADER, vs));
        gl.attachShader(prog, compile(gl.FRAGMENT_SHADER, fs));
        gl.linkProgram(prog);
        gl.useProgram(prog);

        gl.bindBuffer(gl.ARRAY_BUFFER, gl.createBuffer());
        gl.bufferData(gl.ARRAY_BUFFER, new Float32Array([-1,-1,1,-1,-1,1,1,1]), gl.STATIC_DRAW);
        const loc = gl.getAttribLocation(prog, 'p');
        gl.enableVertexAttribArray(loc);
        gl.vertexAttribPointer(loc, 2, gl.FLOAT, false, 0, 0);

        function hexToRgb(hex) {
            const n = parseInt(hex.slice(1), 16);
            return [((n >> 16) & 255) / 255, ((n >> 8) & 255) / 255, (n & 255) / 255];
        }

        function frame(t) {
            canvas.width = canvas.clientWidth;
            canvas.height = canvas.clientHeight;
            gl.viewport(0, 0, canvas.width, canvas.height);
            gl.uniform1f(gl.getUniformLocation(prog, 'u_time'), t / 1000);
            gl.uniform2f(gl.getUniformLocation(prog, 'u_resolution'), canvas.width, canvas.height);
            gl.uniform1f(gl.getUniformLocation(prog, 'u_speed'), params.speed);
            gl.uniform3fv(gl.getUniformLocation(prog, 'u_color'), hexToRgb(params.color));
            gl.uniform1i(gl.getUniformLocation(prog, 'u_pattern'), params.pattern === 'rings' ? 0 : 1);
            gl.drawArrays(gl.TRIANGLE_STRIP, 0, 4);
            requestAnimationFrame(frame);
        }
        requestAnimationFrame(frame);
    </script>
</body>
</html>`

const defaultShaderConfig = `{
  "Controls": {
    "speed": { "value": 1.0, "min": 0.0, "max": 5.0, "step": 0.1 },
    "color": { "value": "#ff3366" },
    "pattern": { "value": "rings", "options": { "Rings": "rings", "Rays": "rays" } }
  }
}`

// DefaultShader returns the starter shader shown before anything is generated.
func DefaultShader() Shader {
	return Shader{
		ID:        DefaultShaderID,
		CreatedAt: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
		CreatorID: "shaderland",
		LineageID: DefaultShaderID,
		HTML:      defaultShaderHTML,
		JSON:      MustControlConfig(defaultShaderConfig),
		Metadata: map[string]interface{}{
			MetadataPrompt: "Concentric rings pulsing outward in a single color",
		},
	}
}
