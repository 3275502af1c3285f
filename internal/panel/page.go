package panel

const indexHTML = `<!doctype html>
<meta charset="utf-8" />
<title>Camera Panel</title>
<style>
body{font-family:system-ui;margin:2rem}
label{display:inline-block;margin-right:1.5rem}
#videoDiv{display:flex;flex-wrap:wrap;gap:1rem;margin-top:1rem}
.el{border:1px solid #ccc;border-radius:4px;padding:.5rem 1rem;min-width:16rem}
#msg{color:#b00;min-height:1.2rem}
</style>
<div>
  <label>Camera <select id="camera"></select></label>
  <label>FPS <input id="fps" type="range" min="1" max="60" /> <span id="fpsv"></span></label>
  <label>Resolution <input id="resolution" type="range" min="0" max="100" /> <span id="resv"></span></label>
  <label>Mode <select id="mode" disabled></select></label>
  <div id="msg"></div>
  <div id="session"></div>
</div>
<div id="videoDiv"></div>
<script>
const $=id=>document.getElementById(id);
const say=t=>{$("msg").textContent=t||""};

async function call(method, url, body){
  const resp=await fetch(url,{method,headers:{'Content-Type':'application/json'},body:body===undefined?undefined:JSON.stringify(body)});
  const data=await resp.json().catch(()=>({}));
  if(!resp.ok){throw new Error(data.error||resp.statusText)}
  return data;
}

function render(s){
  const sel=$("camera");
  if(sel.options.length!==s.cameras.length||[...sel.options].some((o,i)=>o.value!==s.cameras[i])){
    sel.innerHTML="";
    for(const id of s.cameras){const o=document.createElement("option");o.value=id;o.textContent=id||"(none)";sel.appendChild(o)}
  }
  sel.value=s.selected;
  $("fps").value=s.controls.fps;$("fpsv").textContent=s.controls.fps;
  $("resolution").value=s.controls.resolution;$("resv").textContent=s.controls.resolution;
  $("session").textContent=s.session?("session "+s.session.id.slice(0,8)+" "+s.session.camera+": "+s.session.state):"";
  if(s.error){say(s.error)}
  const div=$("videoDiv");div.innerHTML="";
  for(const e of s.elements){
    const d=document.createElement("div");d.className="el";
    d.textContent=e.kind+" "+e.source+" "+(e.codec||"")+" "+e.packets+" pkts"+(e.recording?" -> "+e.recording:"");
    div.appendChild(d);
  }
  $("mode").disabled=!s.selected;
  if(s.selected&&$("mode").dataset.camera!==s.selected){loadModes(s.selected)}
}

async function loadModes(camera){
  $("mode").dataset.camera=camera;$("mode").innerHTML="";
  try{
    const {modes}=await call("GET","/api/modes");
    const {mode}=await call("GET","/api/modes/current");
    for(const m of modes){const o=document.createElement("option");o.value=m.index;o.textContent=m.description;o.selected=m.description===mode;$("mode").appendChild(o)}
  }catch(e){say(e.message)}
}

$("camera").onchange=async ev=>{say("");try{await call("POST","/api/select",{camera:ev.target.value})}catch(e){say(e.message)}};
$("mode").onchange=async ev=>{try{await call("PUT","/api/modes/"+ev.target.value)}catch(e){say(e.message)}};
for(const id of ["fps","resolution"]){
  $(id).oninput=async ()=>{try{await call("PUT","/api/controls",{fps:+$("fps").value,resolution:+$("resolution").value})}catch(e){say(e.message)}};
}

function connect(){
  const ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"/ws");
  ws.onmessage=ev=>render(JSON.parse(ev.data));
  ws.onclose=()=>setTimeout(connect,1000);
}
call("GET","/api/state").then(render).catch(e=>say(e.message));
connect();
</script>`
